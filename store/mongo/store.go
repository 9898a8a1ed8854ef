package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/retirement"
	carbonstore "github.com/xraph/carbon/store"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// Collection name constants.
const (
	colCustodians   = "carbon_custodians"
	colPendingMints = "carbon_pending_mints"
	colEditions     = "carbon_editions"
	colYears        = "carbon_years"
	colBalances     = "carbon_balances"
	colReports      = "carbon_reports"
	colSequences    = "carbon_sequences"
)

// Sequence document ids.
const (
	seqEdition    = "edition"
	seqRetirement = "retirement"
	seqLastMinted = "last_minted_edition"
)

// compile-time interface check
var _ carbonstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all carbon collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("carbon/mongo: %w: %s indexes: %w", carbon.ErrMigrationFailed, col, err)
		}
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
	_, err := s.mdb.NewInsert(toCustodianModel(c)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return carbon.ErrCustodianAlreadyRegistered
		}
		return fmt.Errorf("carbon/mongo: insert custodian: %w", err)
	}
	return nil
}

func (s *Store) GetCustodian(ctx context.Context, account types.AccountID) (*custodian.Custodian, error) {
	var m custodianModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": account.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, carbon.ErrCustodianNotFound
		}
		return nil, fmt.Errorf("carbon/mongo: get custodian: %w", err)
	}
	return fromCustodianModel(&m), nil
}

func (s *Store) DeleteCustodian(ctx context.Context, account types.AccountID) error {
	res, err := s.mdb.NewDelete((*custodianModel)(nil)).
		Filter(bson.M{"_id": account.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/mongo: delete custodian: %w", err)
	}
	if res.DeletedCount() == 0 {
		return carbon.ErrCustodianNotFound
	}
	return nil
}

func (s *Store) ListCustodians(ctx context.Context) ([]*custodian.Custodian, error) {
	var models []custodianModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "block_number", Value: 1}, {Key: "created_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/mongo: list custodians: %w", err)
	}

	result := make([]*custodian.Custodian, 0, len(models))
	for i := range models {
		result = append(result, fromCustodianModel(&models[i]))
	}
	return result, nil
}

// ==================== Token Store ====================

func (s *Store) NextEditionID(ctx context.Context) (types.EditionID, error) {
	v, err := s.nextSequence(ctx, seqEdition)
	if err != nil {
		return 0, fmt.Errorf("carbon/mongo: next edition id: %w", err)
	}
	return types.EditionID(v), nil
}

func (s *Store) InsertPendingMint(ctx context.Context, p *token.PendingMint) error {
	_, err := s.mdb.NewInsert(toPendingMintModel(p)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return carbon.ErrTokenMintRequestAlreadyPending
		}
		return fmt.Errorf("carbon/mongo: insert pending mint: %w", err)
	}
	return nil
}

func (s *Store) GetPendingMint(ctx context.Context, registryID string) (*token.PendingMint, error) {
	var m pendingMintModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": registryID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, carbon.ErrTokenMintRequestNotFound
		}
		return nil, fmt.Errorf("carbon/mongo: get pending mint: %w", err)
	}
	return fromPendingMintModel(&m)
}

func (s *Store) DeletePendingMint(ctx context.Context, registryID string) error {
	res, err := s.mdb.NewDelete((*pendingMintModel)(nil)).
		Filter(bson.M{"_id": registryID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/mongo: delete pending mint: %w", err)
	}
	if res.DeletedCount() == 0 {
		return carbon.ErrTokenMintRequestNotFound
	}
	return nil
}

func (s *Store) InsertEdition(ctx context.Context, e *token.Edition) error {
	_, err := s.mdb.NewInsert(toEditionModel(e)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return carbon.ErrTokenAlreadyMinted
		}
		return fmt.Errorf("carbon/mongo: insert edition: %w", err)
	}
	return nil
}

func (s *Store) GetEdition(ctx context.Context, editionID types.EditionID) (*token.Edition, error) {
	var m editionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(editionID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, carbon.ErrTokenNotFound
		}
		return nil, fmt.Errorf("carbon/mongo: get edition: %w", err)
	}
	return fromEditionModel(&m), nil
}

func (s *Store) UpdateEdition(ctx context.Context, e *token.Edition) error {
	res, err := s.mdb.NewUpdate((*editionModel)(nil)).
		Filter(bson.M{"_id": int64(e.ID)}).
		Set("supply", int64(e.Supply)).
		Set("retired", int64(e.Retired)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/mongo: update edition: %w", err)
	}
	if res.MatchedCount() == 0 {
		return carbon.ErrTokenNotFound
	}
	return nil
}

func (s *Store) ListEditions(ctx context.Context) ([]*token.Edition, error) {
	var models []editionModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/mongo: list editions: %w", err)
	}

	result := make([]*token.Edition, 0, len(models))
	for i := range models {
		result = append(result, fromEditionModel(&models[i]))
	}
	return result, nil
}

func (s *Store) SetLastMintedEditionID(ctx context.Context, editionID types.EditionID) error {
	m := &sequenceModel{Name: seqLastMinted, Value: int64(editionID)}
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.Name}).
		SetUpdate(bson.M{"$set": bson.M{"value": m.Value}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/mongo: set last minted edition: %w", err)
	}
	return nil
}

func (s *Store) LastMintedEditionID(ctx context.Context) (types.EditionID, bool, error) {
	var m sequenceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": seqLastMinted}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("carbon/mongo: last minted edition: %w", err)
	}
	return types.EditionID(m.Value), true, nil
}

func (s *Store) AppendYearEdition(ctx context.Context, year types.Year, editionID types.EditionID) error {
	_, err := s.mdb.NewUpdate((*yearModel)(nil)).
		Filter(bson.M{"_id": int(year)}).
		SetUpdate(bson.M{"$push": bson.M{"editions": int64(editionID)}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/mongo: append year edition: %w", err)
	}
	return nil
}

func (s *Store) ListYearEditions(ctx context.Context, year types.Year) ([]types.EditionID, error) {
	var m yearModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int(year)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return []types.EditionID{}, nil
		}
		return nil, fmt.Errorf("carbon/mongo: list year editions: %w", err)
	}

	result := make([]types.EditionID, 0, len(m.Editions))
	for _, editionID := range m.Editions {
		result = append(result, types.EditionID(editionID))
	}
	return result, nil
}

func (s *Store) GetBalance(ctx context.Context, account types.AccountID, editionID types.EditionID) (types.CarbonUnit, error) {
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": balanceKey(account, editionID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("carbon/mongo: get balance: %w", err)
	}
	return types.CarbonUnit(m.Amount), nil
}

func (s *Store) SetBalance(ctx context.Context, account types.AccountID, editionID types.EditionID, amount types.CarbonUnit) error {
	key := balanceKey(account, editionID)

	if amount == 0 {
		_, err := s.mdb.NewDelete((*balanceModel)(nil)).
			Filter(bson.M{"_id": key}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("carbon/mongo: clear balance: %w", err)
		}
		return nil
	}

	m := &balanceModel{
		Key:       key,
		Account:   account.String(),
		EditionID: int64(editionID),
		Amount:    int64(amount),
	}
	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.Key}).
		SetUpdate(bson.M{"$set": bson.M{
			"account":    m.Account,
			"edition_id": m.EditionID,
			"amount":     m.Amount,
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/mongo: set balance: %w", err)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, account types.AccountID) ([]types.Holding, error) {
	var models []balanceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"account": account.String()}).
		Sort(bson.D{{Key: "edition_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/mongo: list balances: %w", err)
	}

	result := make([]types.Holding, 0, len(models))
	for _, m := range models {
		result = append(result, types.Holding{
			EditionID: types.EditionID(m.EditionID),
			Amount:    types.CarbonUnit(m.Amount),
		})
	}
	return result, nil
}

func (s *Store) ClearBalances(ctx context.Context, account types.AccountID) error {
	_, err := s.mdb.NewDelete((*balanceModel)(nil)).
		Filter(bson.M{"account": account.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/mongo: clear balances: %w", err)
	}
	return nil
}

// ==================== Retirement Store ====================

func (s *Store) NextRetirementID(ctx context.Context) (types.RetirementID, error) {
	v, err := s.nextSequence(ctx, seqRetirement)
	if err != nil {
		return 0, fmt.Errorf("carbon/mongo: next retirement id: %w", err)
	}
	return types.RetirementID(v), nil
}

func (s *Store) InsertReport(ctx context.Context, r *retirement.Report) error {
	_, err := s.mdb.NewInsert(toReportModel(r)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("carbon/mongo: insert report: %w", err)
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, retirementID types.RetirementID) (*retirement.Report, error) {
	var m reportModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": int64(retirementID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, carbon.ErrRetirementReportNotFound
		}
		return nil, fmt.Errorf("carbon/mongo: get report: %w", err)
	}
	return fromReportModel(&m), nil
}

func (s *Store) LastReport(ctx context.Context) (*retirement.Report, error) {
	var models []reportModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "_id", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/mongo: last report: %w", err)
	}
	if len(models) == 0 {
		return nil, carbon.ErrRetirementReportNotFound
	}
	return fromReportModel(&models[0]), nil
}

func (s *Store) ListAccountReports(ctx context.Context, account types.AccountID) ([]*retirement.Report, error) {
	var models []reportModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"beneficiary": account.String()}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("carbon/mongo: list account reports: %w", err)
	}

	result := make([]*retirement.Report, 0, len(models))
	for i := range models {
		result = append(result, fromReportModel(&models[i]))
	}
	return result, nil
}

// ==================== Helpers ====================

// nextSequence returns the current value of the named counter and
// increments it. Counters start at zero.
func (s *Store) nextSequence(ctx context.Context, name string) (int64, error) {
	var m sequenceModel
	err := s.mdb.Collection(colSequences).FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		return 0, err
	}
	return m.Value - 1, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all carbon collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colCustodians: {
			{Keys: bson.D{{Key: "block_number", Value: 1}}},
		},
		colPendingMints: {
			{Keys: bson.D{{Key: "request_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		colEditions: {
			{Keys: bson.D{{Key: "year", Value: 1}}},
			{Keys: bson.D{{Key: "registry_id", Value: 1}}},
		},
		colYears: {},
		colBalances: {
			{
				Keys:    bson.D{{Key: "account", Value: 1}, {Key: "edition_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colReports: {
			{Keys: bson.D{{Key: "beneficiary", Value: 1}, {Key: "_id", Value: 1}}},
		},
		colSequences: {},
	}
}
