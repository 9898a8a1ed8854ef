package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("carbon/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("carbon/postgres: %w: %w", carbon.ErrMigrationFailed, err)
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
	res, err := s.pg.NewInsert(toCustodianModel(c)).
		OnConflict("(account) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/postgres: insert custodian: %w", err)
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
	err := s.pg.NewSelect(m).
		Where("account = $1", account.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, carbon.ErrCustodianNotFound
		}
		return nil, fmt.Errorf("carbon/postgres: get custodian: %w", err)
	}
	return fromCustodianModel(m), nil
}

func (s *Store) DeleteCustodian(ctx context.Context, account types.AccountID) error {
	res, err := s.pg.NewDelete((*custodianModel)(nil)).
		Where("account = $1", account.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/postgres: delete custodian: %w", err)
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
	err := s.pg.NewSelect(&models).
		OrderExpr("block_number ASC, account ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/postgres: list custodians: %w", err)
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
		return 0, fmt.Errorf("carbon/postgres: next edition id: %w", err)
	}
	return types.EditionID(v), nil
}

func (s *Store) InsertPendingMint(ctx context.Context, p *token.PendingMint) error {
	res, err := s.pg.NewInsert(toPendingMintModel(p)).
		OnConflict("(registry_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/postgres: insert pending mint: %w", err)
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
	err := s.pg.NewSelect(m).
		Where("registry_id = $1", registryID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, carbon.ErrTokenMintRequestNotFound
		}
		return nil, fmt.Errorf("carbon/postgres: get pending mint: %w", err)
	}
	return fromPendingMintModel(m)
}

func (s *Store) DeletePendingMint(ctx context.Context, registryID string) error {
	res, err := s.pg.NewDelete((*pendingMintModel)(nil)).
		Where("registry_id = $1", registryID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/postgres: delete pending mint: %w", err)
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
	res, err := s.pg.NewInsert(toEditionModel(e)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/postgres: insert edition: %w", err)
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
	err := s.pg.NewSelect(m).
		Where("id = $1", int64(editionID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, carbon.ErrTokenNotFound
		}
		return nil, fmt.Errorf("carbon/postgres: get edition: %w", err)
	}
	return fromEditionModel(m), nil
}

func (s *Store) UpdateEdition(ctx context.Context, e *token.Edition) error {
	res, err := s.pg.NewUpdate((*editionModel)(nil)).
		Set("supply = $1", int64(e.Supply)).
		Set("retired = $2", int64(e.Retired)).
		Where("id = $3", int64(e.ID)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/postgres: update edition: %w", err)
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
	if err := s.pg.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("carbon/postgres: list editions: %w", err)
	}

	result := make([]*token.Edition, len(models))
	for i := range models {
		result[i] = fromEditionModel(&models[i])
	}
	return result, nil
}

func (s *Store) SetLastMintedEditionID(ctx context.Context, editionID types.EditionID) error {
	_, err := s.pg.NewInsert(&sequenceModel{Name: seqLastMinted, Value: int64(editionID)}).
		OnConflict("(name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/postgres: set last minted: %w", err)
	}
	return nil
}

func (s *Store) LastMintedEditionID(ctx context.Context) (types.EditionID, bool, error) {
	m := new(sequenceModel)
	err := s.pg.NewSelect(m).
		Where("name = $1", seqLastMinted).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("carbon/postgres: last minted: %w", err)
	}
	return types.EditionID(m.Value), true, nil
}

func (s *Store) AppendYearEdition(ctx context.Context, year types.Year, editionID types.EditionID) error {
	var position int
	err := s.pg.NewRaw(`
		INSERT INTO carbon_year_editions (year, position, edition_id)
		SELECT $1, COALESCE(MAX(position) + 1, 0), $2 FROM carbon_year_editions WHERE year = $1
		RETURNING position
	`, int(year), int64(editionID)).Scan(ctx, &position)
	if err != nil {
		return fmt.Errorf("carbon/postgres: append year edition: %w", err)
	}
	return nil
}

func (s *Store) ListYearEditions(ctx context.Context, year types.Year) ([]types.EditionID, error) {
	var models []yearEditionModel
	err := s.pg.NewSelect(&models).
		Where("year = $1", int(year)).
		OrderExpr("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/postgres: list year editions: %w", err)
	}

	result := make([]types.EditionID, len(models))
	for i := range models {
		result[i] = types.EditionID(models[i].EditionID)
	}
	return result, nil
}

func (s *Store) GetBalance(ctx context.Context, account types.AccountID, editionID types.EditionID) (types.CarbonUnit, error) {
	m := new(balanceModel)
	err := s.pg.NewSelect(m).
		Where("account = $1", account.String()).
		Where("edition_id = $2", int64(editionID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("carbon/postgres: get balance: %w", err)
	}
	return types.CarbonUnit(m.Amount), nil
}

func (s *Store) SetBalance(ctx context.Context, account types.AccountID, editionID types.EditionID, amount types.CarbonUnit) error {
	if amount == 0 {
		_, err := s.pg.NewDelete((*balanceModel)(nil)).
			Where("account = $1", account.String()).
			Where("edition_id = $2", int64(editionID)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("carbon/postgres: clear balance: %w", err)
		}
		return nil
	}

	m := &balanceModel{Account: account.String(), EditionID: int64(editionID), Amount: int64(amount)}
	_, err := s.pg.NewInsert(m).
		OnConflict("(account, edition_id) DO UPDATE").
		Set("amount = EXCLUDED.amount").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/postgres: set balance: %w", err)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, account types.AccountID) ([]types.Holding, error) {
	var models []balanceModel
	err := s.pg.NewSelect(&models).
		Where("account = $1", account.String()).
		OrderExpr("edition_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/postgres: list balances: %w", err)
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
	_, err := s.pg.NewDelete((*balanceModel)(nil)).
		Where("account = $1", account.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/postgres: clear balances: %w", err)
	}
	return nil
}

// ==================== Retirement Store ====================

func (s *Store) NextRetirementID(ctx context.Context) (types.RetirementID, error) {
	v, err := s.nextSequence(ctx, seqRetirement)
	if err != nil {
		return 0, fmt.Errorf("carbon/postgres: next retirement id: %w", err)
	}
	return types.RetirementID(v), nil
}

func (s *Store) InsertReport(ctx context.Context, r *retirement.Report) error {
	_, err := s.pg.NewInsert(toReportModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/postgres: insert report: %w", err)
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, retirementID types.RetirementID) (*retirement.Report, error) {
	m := new(reportModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", int64(retirementID)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, carbon.ErrRetirementReportNotFound
		}
		return nil, fmt.Errorf("carbon/postgres: get report: %w", err)
	}
	return fromReportModel(m), nil
}

func (s *Store) LastReport(ctx context.Context) (*retirement.Report, error) {
	m := new(reportModel)
	err := s.pg.NewSelect(m).
		OrderExpr("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, carbon.ErrRetirementReportNotFound
		}
		return nil, fmt.Errorf("carbon/postgres: last report: %w", err)
	}
	return fromReportModel(m), nil
}

func (s *Store) ListAccountReports(ctx context.Context, account types.AccountID) ([]*retirement.Report, error) {
	var models []reportModel
	err := s.pg.NewSelect(&models).
		Where("beneficiary = $1", account.String()).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/postgres: list account reports: %w", err)
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
	err := s.pg.NewRaw(`
		INSERT INTO carbon_sequences (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = carbon_sequences.value + 1
		RETURNING value - 1
	`, name).Scan(ctx, &v)
	return v, err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
