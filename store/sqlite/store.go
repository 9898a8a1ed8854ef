package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/retirement"
	carbonstore "github.com/xraph/carbon/store"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// Sequence names in carbon_sequences.
const (
	seqEdition    = "edition"
	seqRetirement = "retirement"
	seqLastMinted = "last_minted_edition"
)

// compile-time interface check
var _ carbonstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("carbon/sqlite: %w: %w", carbon.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Custodian Store ====================

func (s *Store) InsertCustodian(ctx context.Context, c *custodian.Custodian) error {
	res, err := s.sdb.NewInsert(toCustodianModel(c)).
		OnConflict("(account) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: insert custodian: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return carbon.ErrCustodianAlreadyRegistered
	}
	return nil
}

func (s *Store) GetCustodian(ctx context.Context, account types.AccountID) (*custodian.Custodian, error) {
	m := new(custodianModel)
	err := s.sdb.NewSelect(m).
		Where("account = ?", account.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, carbon.ErrCustodianNotFound
		}
		return nil, fmt.Errorf("carbon/sqlite: get custodian: %w", err)
	}
	return fromCustodianModel(m), nil
}

func (s *Store) DeleteCustodian(ctx context.Context, account types.AccountID) error {
	res, err := s.sdb.NewDelete((*custodianModel)(nil)).
		Where("account = ?", account.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: delete custodian: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return carbon.ErrCustodianNotFound
	}
	return nil
}

func (s *Store) ListCustodians(ctx context.Context) ([]*custodian.Custodian, error) {
	var models []custodianModel
	err := s.sdb.NewSelect(&models).
		OrderExpr("block_number ASC, account ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/sqlite: list custodians: %w", err)
	}

	result := make([]*custodian.Custodian, len(models))
	for i := range models {
		result[i] = fromCustodianModel(&models[i])
	}
	return result, nil
}

// ==================== Token Store ====================

func (s *Store) NextEditionID(ctx context.Context) (types.EditionID, error) {
	v, err := s.nextSequence(ctx, seqEdition)
	if err != nil {
		return 0, fmt.Errorf("carbon/sqlite: next edition id: %w", err)
	}
	return types.EditionID(v), nil
}

func (s *Store) InsertPendingMint(ctx context.Context, p *token.PendingMint) error {
	res, err := s.sdb.NewInsert(toPendingMintModel(p)).
		OnConflict("(registry_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: insert pending mint: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return carbon.ErrTokenMintRequestAlreadyPending
	}
	return nil
}

func (s *Store) GetPendingMint(ctx context.Context, registryID string) (*token.PendingMint, error) {
	m := new(pendingMintModel)
	err := s.sdb.NewSelect(m).
		Where("registry_id = ?", registryID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, carbon.ErrTokenMintRequestNotFound
		}
		return nil, fmt.Errorf("carbon/sqlite: get pending mint: %w", err)
	}
	return fromPendingMintModel(m)
}

func (s *Store) DeletePendingMint(ctx context.Context, registryID string) error {
	res, err := s.sdb.NewDelete((*pendingMintModel)(nil)).
		Where("registry_id = ?", registryID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: delete pending mint: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return carbon.ErrTokenMintRequestNotFound
	}
	return nil
}

func (s *Store) InsertEdition(ctx context.Context, e *token.Edition) error {
	res, err := s.sdb.NewInsert(toEditionModel(e)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: insert edition: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return carbon.ErrTokenAlreadyMinted
	}
	return nil
}

func (s *Store) GetEdition(ctx context.Context, editionID types.EditionID) (*token.Edition, error) {
	m := new(editionModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", int64(editionID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, carbon.ErrTokenNotFound
		}
		return nil, fmt.Errorf("carbon/sqlite: get edition: %w", err)
	}
	return fromEditionModel(m), nil
}

func (s *Store) UpdateEdition(ctx context.Context, e *token.Edition) error {
	res, err := s.sdb.NewUpdate((*editionModel)(nil)).
		Set("supply = ?", int64(e.Supply)).
		Set("retired = ?", int64(e.Retired)).
		Where("id = ?", int64(e.ID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: update edition: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return carbon.ErrTokenNotFound
	}
	return nil
}

func (s *Store) ListEditions(ctx context.Context) ([]*token.Edition, error) {
	var models []editionModel
	if err := s.sdb.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("carbon/sqlite: list editions: %w", err)
	}

	result := make([]*token.Edition, len(models))
	for i := range models {
		result[i] = fromEditionModel(&models[i])
	}
	return result, nil
}

func (s *Store) SetLastMintedEditionID(ctx context.Context, editionID types.EditionID) error {
	_, err := s.sdb.NewInsert(&sequenceModel{Name: seqLastMinted, Value: int64(editionID)}).
		OnConflict("(name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: set last minted: %w", err)
	}
	return nil
}

func (s *Store) LastMintedEditionID(ctx context.Context) (types.EditionID, bool, error) {
	m := new(sequenceModel)
	err := s.sdb.NewSelect(m).
		Where("name = ?", seqLastMinted).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("carbon/sqlite: last minted: %w", err)
	}
	return types.EditionID(m.Value), true, nil
}

func (s *Store) AppendYearEdition(ctx context.Context, year types.Year, editionID types.EditionID) error {
	var position int
	err := s.sdb.NewRaw(`
		INSERT INTO carbon_year_editions (year, position, edition_id)
		SELECT ?, COALESCE(MAX(position) + 1, 0), ? FROM carbon_year_editions WHERE year = ?
		RETURNING position
	`, int(year), int64(editionID), int(year)).Scan(ctx, &position)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: append year edition: %w", err)
	}
	return nil
}

func (s *Store) ListYearEditions(ctx context.Context, year types.Year) ([]types.EditionID, error) {
	var models []yearEditionModel
	err := s.sdb.NewSelect(&models).
		Where("year = ?", int(year)).
		OrderExpr("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/sqlite: list year editions: %w", err)
	}

	result := make([]types.EditionID, len(models))
	for i := range models {
		result[i] = types.EditionID(models[i].EditionID)
	}
	return result, nil
}

func (s *Store) GetBalance(ctx context.Context, account types.AccountID, editionID types.EditionID) (types.CarbonUnit, error) {
	m := new(balanceModel)
	err := s.sdb.NewSelect(m).
		Where("account = ?", account.String()).
		Where("edition_id = ?", int64(editionID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("carbon/sqlite: get balance: %w", err)
	}
	return types.CarbonUnit(m.Amount), nil
}

func (s *Store) SetBalance(ctx context.Context, account types.AccountID, editionID types.EditionID, amount types.CarbonUnit) error {
	if amount == 0 {
		_, err := s.sdb.NewDelete((*balanceModel)(nil)).
			Where("account = ?", account.String()).
			Where("edition_id = ?", int64(editionID)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("carbon/sqlite: clear balance: %w", err)
		}
		return nil
	}

	m := &balanceModel{Account: account.String(), EditionID: int64(editionID), Amount: int64(amount)}
	_, err := s.sdb.NewInsert(m).
		OnConflict("(account, edition_id) DO UPDATE").
		Set("amount = EXCLUDED.amount").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: set balance: %w", err)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, account types.AccountID) ([]types.Holding, error) {
	var models []balanceModel
	err := s.sdb.NewSelect(&models).
		Where("account = ?", account.String()).
		OrderExpr("edition_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/sqlite: list balances: %w", err)
	}

	result := make([]types.Holding, len(models))
	for i := range models {
		result[i] = types.Holding{
			EditionID: types.EditionID(models[i].EditionID),
			Amount:    types.CarbonUnit(models[i].Amount),
		}
	}
	return result, nil
}

func (s *Store) ClearBalances(ctx context.Context, account types.AccountID) error {
	_, err := s.sdb.NewDelete((*balanceModel)(nil)).
		Where("account = ?", account.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: clear balances: %w", err)
	}
	return nil
}

// ==================== Retirement Store ====================

func (s *Store) NextRetirementID(ctx context.Context) (types.RetirementID, error) {
	v, err := s.nextSequence(ctx, seqRetirement)
	if err != nil {
		return 0, fmt.Errorf("carbon/sqlite: next retirement id: %w", err)
	}
	return types.RetirementID(v), nil
}

func (s *Store) InsertReport(ctx context.Context, r *retirement.Report) error {
	_, err := s.sdb.NewInsert(toReportModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/sqlite: insert report: %w", err)
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, retirementID types.RetirementID) (*retirement.Report, error) {
	m := new(reportModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", int64(retirementID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, carbon.ErrRetirementReportNotFound
		}
		return nil, fmt.Errorf("carbon/sqlite: get report: %w", err)
	}
	return fromReportModel(m), nil
}

func (s *Store) LastReport(ctx context.Context) (*retirement.Report, error) {
	m := new(reportModel)
	err := s.sdb.NewSelect(m).
		OrderExpr("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, carbon.ErrRetirementReportNotFound
		}
		return nil, fmt.Errorf("carbon/sqlite: last report: %w", err)
	}
	return fromReportModel(m), nil
}

func (s *Store) ListAccountReports(ctx context.Context, account types.AccountID) ([]*retirement.Report, error) {
	var models []reportModel
	err := s.sdb.NewSelect(&models).
		Where("beneficiary = ?", account.String()).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/sqlite: list account reports: %w", err)
	}

	result := make([]*retirement.Report, len(models))
	for i := range models {
		result[i] = fromReportModel(&models[i])
	}
	return result, nil
}

// ==================== Helpers ====================

// nextSequence returns the current value of a counter and advances it.
// Counters start at zero.
func (s *Store) nextSequence(ctx context.Context, name string) (int64, error) {
	var v int64
	err := s.sdb.NewRaw(`
		INSERT INTO carbon_sequences (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = carbon_sequences.value + 1
		RETURNING value - 1
	`, name).Scan(ctx, &v)
	return v, err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
