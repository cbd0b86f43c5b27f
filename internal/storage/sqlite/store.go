// Package sqlite is a gorm/SQLite implementation of the ledger store.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"

	"github.com/compose-network/web3call/internal/ledger"
	"github.com/compose-network/web3call/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const databaseFileName = "ledger.sqlite"

// Store reads and writes rollup ledger state in SQLite.
type Store struct {
	db      *gorm.DB
	dataDir string
	logger  *slog.Logger
}

var _ ledger.Store = (*Store)(nil)

// New opens the database in dataDir, or a private in-memory database when
// dataDir is empty, and creates the tables.
func New(dataDir string) (*Store, error) {
	dsn := "file::memory:"
	if dataDir != "" {
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		// WAL journal mode, readers never block the writer
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", filepath.Join(dataDir, databaseFileName))
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}
	if dataDir == "" {
		// every pooled connection to file::memory: would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access ledger database pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s := &Store{
		db:      db,
		dataDir: dataDir,
		logger:  logger.Named("ledger_store"),
	}

	for _, model := range MigrateModels {
		s.logger.Debug(fmt.Sprintf("creating table: %T", model))
		if err := db.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	s.logger.With("data_dir", s.dataDir, "in_memory", s.dataDir == "").Info("ledger store opened")

	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) LookupToken(ctx context.Context, address common.Address) (*ledger.Token, error) {
	var row Token
	result := s.db.WithContext(ctx).Where("address = ?", address.Bytes()).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &ledger.Token{
		ID:       ledger.TokenID(row.ID),
		Address:  common.BytesToAddress(row.Address),
		Symbol:   row.Symbol,
		Decimals: row.Decimals,
		IsNFT:    row.IsNFT,
	}, nil
}

func (s *Store) LookupNFTByID(ctx context.Context, id ledger.TokenID) (*ledger.NFT, error) {
	var row NFT
	result := s.db.WithContext(ctx).Where("id = ?", uint32(id)).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}

	var token Token
	result = s.db.WithContext(ctx).Where("id = ?", uint32(id)).First(&token)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, result.Error
	}

	return &ledger.NFT{
		ID:             ledger.TokenID(row.ID),
		Address:        common.BytesToAddress(token.Address),
		CreatorID:      row.CreatorID,
		CreatorAddress: common.BytesToAddress(row.CreatorAddress),
		SerialID:       row.SerialID,
		ContentHash:    common.BytesToHash(row.ContentHash),
	}, nil
}

// OwnerOfNFT returns the zero address for unknown ids.
func (s *Store) OwnerOfNFT(ctx context.Context, id ledger.TokenID) (common.Address, error) {
	var row NFT
	result := s.db.WithContext(ctx).Select("owner").Where("id = ?", uint32(id)).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return common.Address{}, nil
		}
		return common.Address{}, result.Error
	}
	return common.BytesToAddress(row.Owner), nil
}

func (s *Store) NFTBalanceOf(ctx context.Context, owner common.Address) (uint64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&NFT{}).Where("owner = ?", owner.Bytes()).Count(&count)
	if result.Error != nil {
		return 0, result.Error
	}
	return uint64(count), nil
}

// LatestFinalizedBlock returns 0 when no block has been finalized yet.
func (s *Store) LatestFinalizedBlock(ctx context.Context) (ledger.BlockHeight, error) {
	var height uint64
	result := s.db.WithContext(ctx).Model(&Block{}).Where("finalized = ?", true).Select("COALESCE(MAX(height), 0)").Scan(&height)
	if result.Error != nil {
		return 0, result.Error
	}
	return ledger.BlockHeight(height), nil
}

// BalanceAt returns the most recent balance recorded at or below height,
// or zero when the account never held the token.
func (s *Store) BalanceAt(ctx context.Context, account common.Address, height ledger.BlockHeight, token ledger.TokenID) (*big.Int, error) {
	var row Balance
	result := s.db.WithContext(ctx).
		Where("account = ? AND token_id = ? AND height <= ?", account.Bytes(), uint32(token), uint64(height)).
		Order("height DESC").
		First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return new(big.Int), nil
		}
		return nil, result.Error
	}

	amount, ok := new(big.Int).SetString(row.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stored balance %q for account %s", row.Amount, account.Hex())
	}
	return amount, nil
}

// PutToken inserts or replaces a token.
func (s *Store) PutToken(ctx context.Context, token ledger.Token) error {
	row := Token{
		ID:       uint32(token.ID),
		Address:  token.Address.Bytes(),
		Symbol:   token.Symbol,
		Decimals: token.Decimals,
		IsNFT:    token.IsNFT,
	}
	return s.upsert(ctx, &row)
}

// PutNFT inserts or replaces an NFT together with its token row.
func (s *Store) PutNFT(ctx context.Context, nft ledger.NFT, owner common.Address) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		token := Token{
			ID:      uint32(nft.ID),
			Address: nft.Address.Bytes(),
			Symbol:  fmt.Sprintf("NFT-%d", nft.ID),
			IsNFT:   true,
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&token).Error; err != nil {
			return err
		}
		row := NFT{
			ID:             uint32(nft.ID),
			CreatorID:      nft.CreatorID,
			CreatorAddress: nft.CreatorAddress.Bytes(),
			SerialID:       nft.SerialID,
			ContentHash:    nft.ContentHash.Bytes(),
			Owner:          owner.Bytes(),
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	})
}

// TransferNFT changes the current owner of an NFT.
func (s *Store) TransferNFT(ctx context.Context, id ledger.TokenID, owner common.Address) error {
	result := s.db.WithContext(ctx).Model(&NFT{}).Where("id = ?", uint32(id)).Update("owner", owner.Bytes())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("nft %d not found", id)
	}
	return nil
}

// PutBlock records a block and its finality.
func (s *Store) PutBlock(ctx context.Context, height ledger.BlockHeight, finalized bool) error {
	return s.upsert(ctx, &Block{Height: uint64(height), Finalized: finalized})
}

// PutBalance records an account's balance of a token from height onwards.
func (s *Store) PutBalance(ctx context.Context, account common.Address, token ledger.TokenID, height ledger.BlockHeight, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid balance %v", amount)
	}
	row := Balance{
		Account: account.Bytes(),
		TokenID: uint32(token),
		Height:  uint64(height),
		Amount:  amount.String(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}, {Name: "token_id"}, {Name: "height"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount"}),
	}).Create(&row).Error
}

func (s *Store) upsert(ctx context.Context, row any) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}
