package sqlite

type (
	// Token rows cover fungible tokens and NFTs alike.
	Token struct {
		ID       uint32 `gorm:"primaryKey;autoIncrement:false"`
		Address  []byte `gorm:"uniqueIndex;size:20"`
		Symbol   string `gorm:"size:32"`
		Decimals uint8
		IsNFT    bool `gorm:"index"`
	}

	// NFT holds registry data for an NFT token id. Owner is the current
	// holder.
	NFT struct {
		ID             uint32 `gorm:"primaryKey;autoIncrement:false"`
		CreatorID      uint32
		CreatorAddress []byte `gorm:"size:20"`
		SerialID       uint32
		ContentHash    []byte `gorm:"size:32"`
		Owner          []byte `gorm:"index;size:20"`
	}

	// Block records a rollup block and whether it has been finalized.
	Block struct {
		Height    uint64 `gorm:"primaryKey;autoIncrement:false"`
		Finalized bool   `gorm:"index"`
	}

	// Balance is an account's balance of a token from Height onwards.
	// Amount is a base-10 string since balances exceed 64 bits.
	Balance struct {
		ID      uint   `gorm:"primaryKey"`
		Account []byte `gorm:"uniqueIndex:idx_balance_account_token_height;size:20"`
		TokenID uint32 `gorm:"uniqueIndex:idx_balance_account_token_height"`
		Height  uint64 `gorm:"uniqueIndex:idx_balance_account_token_height"`
		Amount  string
	}
)

func (Token) TableName() string {
	return "token"
}

func (NFT) TableName() string {
	return "nft"
}

func (Block) TableName() string {
	return "block"
}

func (Balance) TableName() string {
	return "balance"
}

// MigrateModels lists every table the store creates.
var MigrateModels = []any{
	&Token{},
	&NFT{},
	&Block{},
	&Balance{},
}
