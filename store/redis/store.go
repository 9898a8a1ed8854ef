// Package redis implements store.Store on Redis. Records are JSON documents
// in hashes, indexes are lists and sorted sets, and counters use INCR.
package redis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/carbon"
	"github.com/xraph/carbon/custodian"
	"github.com/xraph/carbon/retirement"
	carbonstore "github.com/xraph/carbon/store"
	"github.com/xraph/carbon/token"
	"github.com/xraph/carbon/types"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "carbon:"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// compile-time interface check
var _ carbonstore.Store = (*Store)(nil)

// Store implements store.Store on a Redis client.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix replaces DefaultPrefix. Stores sharing a server must use
// distinct prefixes.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store. The caller owns the client; Close closes it.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.UniversalClient { return s.client }

// Migrate is a no-op. Redis keys need no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping checks server connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// ==================== Keys ====================

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += p
	}
	return k
}

func (s *Store) custodiansKey() string     { return s.key("custodians") }
func (s *Store) custodianOrderKey() string { return s.key("custodians", "order") }
func (s *Store) pendingKey() string        { return s.key("pending") }
func (s *Store) editionsKey() string       { return s.key("editions") }
func (s *Store) lastMintedKey() string     { return s.key("editions", "last_minted") }
func (s *Store) reportsKey() string        { return s.key("reports") }
func (s *Store) reportIndexKey() string    { return s.key("reports", "index") }
func (s *Store) seqKey(name string) string { return s.key("seq", name) }

func (s *Store) yearKey(year types.Year) string {
	return s.key("year", year.String())
}

func (s *Store) balanceKey(account types.AccountID) string {
	return s.key("balance", account.String())
}

func (s *Store) accountReportsKey(account types.AccountID) string {
	return s.key("reports", "account", account.String())
}

// ==================== Custodian Store ====================

func (s *Store) InsertCustodian(ctx context.Context, c *custodian.Custodian) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("carbon/redis: encode custodian: %w", err)
	}
	ok, err := s.client.HSetNX(ctx, s.custodiansKey(), c.Account.String(), doc).Result()
	if err != nil {
		return fmt.Errorf("carbon/redis: insert custodian: %w", err)
	}
	if !ok {
		return carbon.ErrCustodianAlreadyRegistered
	}
	if err := s.client.RPush(ctx, s.custodianOrderKey(), c.Account.String()).Err(); err != nil {
		return fmt.Errorf("carbon/redis: index custodian: %w", err)
	}
	return nil
}

func (s *Store) GetCustodian(ctx context.Context, account types.AccountID) (*custodian.Custodian, error) {
	raw, err := s.client.HGet(ctx, s.custodiansKey(), account.String()).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, carbon.ErrCustodianNotFound
		}
		return nil, fmt.Errorf("carbon/redis: get custodian: %w", err)
	}
	var c custodian.Custodian
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("carbon/redis: decode custodian: %w", err)
	}
	return &c, nil
}

func (s *Store) DeleteCustodian(ctx context.Context, account types.AccountID) error {
	n, err := s.client.HDel(ctx, s.custodiansKey(), account.String()).Result()
	if err != nil {
		return fmt.Errorf("carbon/redis: delete custodian: %w", err)
	}
	if n == 0 {
		return carbon.ErrCustodianNotFound
	}
	if err := s.client.LRem(ctx, s.custodianOrderKey(), 0, account.String()).Err(); err != nil {
		return fmt.Errorf("carbon/redis: unindex custodian: %w", err)
	}
	return nil
}

func (s *Store) ListCustodians(ctx context.Context) ([]*custodian.Custodian, error) {
	accounts, err := s.client.LRange(ctx, s.custodianOrderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("carbon/redis: list custodians: %w", err)
	}
	if len(accounts) == 0 {
		return []*custodian.Custodian{}, nil
	}

	docs, err := s.client.HMGet(ctx, s.custodiansKey(), accounts...).Result()
	if err != nil {
		return nil, fmt.Errorf("carbon/redis: list custodians: %w", err)
	}

	result := make([]*custodian.Custodian, 0, len(docs))
	for _, doc := range docs {
		raw, ok := doc.(string)
		if !ok {
			continue
		}
		var c custodian.Custodian
		if err := json.UnmarshalFromString(raw, &c); err != nil {
			return nil, fmt.Errorf("carbon/redis: decode custodian: %w", err)
		}
		result = append(result, &c)
	}
	return result, nil
}

// ==================== Token Store ====================

func (s *Store) NextEditionID(ctx context.Context) (types.EditionID, error) {
	v, err := s.nextSequence(ctx, "edition")
	if err != nil {
		return 0, fmt.Errorf("carbon/redis: next edition id: %w", err)
	}
	return types.EditionID(v), nil
}

func (s *Store) InsertPendingMint(ctx context.Context, p *token.PendingMint) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("carbon/redis: encode pending mint: %w", err)
	}
	ok, err := s.client.HSetNX(ctx, s.pendingKey(), p.RegistryID, doc).Result()
	if err != nil {
		return fmt.Errorf("carbon/redis: insert pending mint: %w", err)
	}
	if !ok {
		return carbon.ErrTokenMintRequestAlreadyPending
	}
	return nil
}

func (s *Store) GetPendingMint(ctx context.Context, registryID string) (*token.PendingMint, error) {
	raw, err := s.client.HGet(ctx, s.pendingKey(), registryID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, carbon.ErrTokenMintRequestNotFound
		}
		return nil, fmt.Errorf("carbon/redis: get pending mint: %w", err)
	}
	var p token.PendingMint
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("carbon/redis: decode pending mint: %w", err)
	}
	return &p, nil
}

func (s *Store) DeletePendingMint(ctx context.Context, registryID string) error {
	n, err := s.client.HDel(ctx, s.pendingKey(), registryID).Result()
	if err != nil {
		return fmt.Errorf("carbon/redis: delete pending mint: %w", err)
	}
	if n == 0 {
		return carbon.ErrTokenMintRequestNotFound
	}
	return nil
}

func (s *Store) InsertEdition(ctx context.Context, e *token.Edition) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("carbon/redis: encode edition: %w", err)
	}
	ok, err := s.client.HSetNX(ctx, s.editionsKey(), e.ID.String(), doc).Result()
	if err != nil {
		return fmt.Errorf("carbon/redis: insert edition: %w", err)
	}
	if !ok {
		return carbon.ErrTokenAlreadyMinted
	}
	return nil
}

func (s *Store) GetEdition(ctx context.Context, editionID types.EditionID) (*token.Edition, error) {
	raw, err := s.client.HGet(ctx, s.editionsKey(), editionID.String()).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, carbon.ErrTokenNotFound
		}
		return nil, fmt.Errorf("carbon/redis: get edition: %w", err)
	}
	var e token.Edition
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("carbon/redis: decode edition: %w", err)
	}
	return &e, nil
}

func (s *Store) UpdateEdition(ctx context.Context, e *token.Edition) error {
	exists, err := s.client.HExists(ctx, s.editionsKey(), e.ID.String()).Result()
	if err != nil {
		return fmt.Errorf("carbon/redis: update edition: %w", err)
	}
	if !exists {
		return carbon.ErrTokenNotFound
	}
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("carbon/redis: encode edition: %w", err)
	}
	if err := s.client.HSet(ctx, s.editionsKey(), e.ID.String(), doc).Err(); err != nil {
		return fmt.Errorf("carbon/redis: update edition: %w", err)
	}
	return nil
}

func (s *Store) ListEditions(ctx context.Context) ([]*token.Edition, error) {
	docs, err := s.client.HVals(ctx, s.editionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("carbon/redis: list editions: %w", err)
	}

	result := make([]*token.Edition, 0, len(docs))
	for _, raw := range docs {
		var e token.Edition
		if err := json.UnmarshalFromString(raw, &e); err != nil {
			return nil, fmt.Errorf("carbon/redis: decode edition: %w", err)
		}
		result = append(result, &e)
	}
	slices.SortFunc(result, func(a, b *token.Edition) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) SetLastMintedEditionID(ctx context.Context, editionID types.EditionID) error {
	if err := s.client.Set(ctx, s.lastMintedKey(), editionID.String(), 0).Err(); err != nil {
		return fmt.Errorf("carbon/redis: set last minted edition: %w", err)
	}
	return nil
}

func (s *Store) LastMintedEditionID(ctx context.Context) (types.EditionID, bool, error) {
	raw, err := s.client.Get(ctx, s.lastMintedKey()).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("carbon/redis: last minted edition: %w", err)
	}
	editionID, err := types.ParseEditionID(raw)
	if err != nil {
		return 0, false, fmt.Errorf("carbon/redis: last minted edition: %w", err)
	}
	return editionID, true, nil
}

func (s *Store) AppendYearEdition(ctx context.Context, year types.Year, editionID types.EditionID) error {
	if err := s.client.RPush(ctx, s.yearKey(year), editionID.String()).Err(); err != nil {
		return fmt.Errorf("carbon/redis: append year edition: %w", err)
	}
	return nil
}

func (s *Store) ListYearEditions(ctx context.Context, year types.Year) ([]types.EditionID, error) {
	raw, err := s.client.LRange(ctx, s.yearKey(year), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("carbon/redis: list year editions: %w", err)
	}

	result := make([]types.EditionID, 0, len(raw))
	for _, v := range raw {
		editionID, err := types.ParseEditionID(v)
		if err != nil {
			return nil, fmt.Errorf("carbon/redis: list year editions: %w", err)
		}
		result = append(result, editionID)
	}
	return result, nil
}

func (s *Store) GetBalance(ctx context.Context, account types.AccountID, editionID types.EditionID) (types.CarbonUnit, error) {
	amount, err := s.client.HGet(ctx, s.balanceKey(account), editionID.String()).Uint64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("carbon/redis: get balance: %w", err)
	}
	return types.CarbonUnit(amount), nil
}

func (s *Store) SetBalance(ctx context.Context, account types.AccountID, editionID types.EditionID, amount types.CarbonUnit) error {
	var err error
	if amount == 0 {
		err = s.client.HDel(ctx, s.balanceKey(account), editionID.String()).Err()
	} else {
		err = s.client.HSet(ctx, s.balanceKey(account), editionID.String(), amount.String()).Err()
	}
	if err != nil {
		return fmt.Errorf("carbon/redis: set balance: %w", err)
	}
	return nil
}

func (s *Store) ListBalances(ctx context.Context, account types.AccountID) ([]types.Holding, error) {
	held, err := s.client.HGetAll(ctx, s.balanceKey(account)).Result()
	if err != nil {
		return nil, fmt.Errorf("carbon/redis: list balances: %w", err)
	}

	result := make([]types.Holding, 0, len(held))
	for field, value := range held {
		editionID, err := types.ParseEditionID(field)
		if err != nil {
			return nil, fmt.Errorf("carbon/redis: list balances: %w", err)
		}
		amount, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("carbon/redis: list balances: %w", err)
		}
		result = append(result, types.Holding{EditionID: editionID, Amount: types.CarbonUnit(amount)})
	}
	slices.SortFunc(result, func(a, b types.Holding) int {
		return cmp.Compare(a.EditionID, b.EditionID)
	})
	return result, nil
}

func (s *Store) ClearBalances(ctx context.Context, account types.AccountID) error {
	if err := s.client.Del(ctx, s.balanceKey(account)).Err(); err != nil {
		return fmt.Errorf("carbon/redis: clear balances: %w", err)
	}
	return nil
}

// ==================== Retirement Store ====================

func (s *Store) NextRetirementID(ctx context.Context) (types.RetirementID, error) {
	v, err := s.nextSequence(ctx, "retirement")
	if err != nil {
		return 0, fmt.Errorf("carbon/redis: next retirement id: %w", err)
	}
	return types.RetirementID(v), nil
}

func (s *Store) InsertReport(ctx context.Context, r *retirement.Report) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("carbon/redis: encode report: %w", err)
	}
	member := r.ID.String()
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.reportsKey(), member, doc)
		pipe.ZAdd(ctx, s.reportIndexKey(), goredis.Z{Score: float64(r.ID), Member: member})
		pipe.RPush(ctx, s.accountReportsKey(r.Beneficiary), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("carbon/redis: insert report: %w", err)
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, retirementID types.RetirementID) (*retirement.Report, error) {
	raw, err := s.client.HGet(ctx, s.reportsKey(), retirementID.String()).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, carbon.ErrRetirementReportNotFound
		}
		return nil, fmt.Errorf("carbon/redis: get report: %w", err)
	}
	var r retirement.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("carbon/redis: decode report: %w", err)
	}
	return &r, nil
}

func (s *Store) LastReport(ctx context.Context) (*retirement.Report, error) {
	members, err := s.client.ZRevRange(ctx, s.reportIndexKey(), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("carbon/redis: last report: %w", err)
	}
	if len(members) == 0 {
		return nil, carbon.ErrRetirementReportNotFound
	}
	retirementID, err := types.ParseRetirementID(members[0])
	if err != nil {
		return nil, fmt.Errorf("carbon/redis: last report: %w", err)
	}
	return s.GetReport(ctx, retirementID)
}

func (s *Store) ListAccountReports(ctx context.Context, account types.AccountID) ([]*retirement.Report, error) {
	ids, err := s.client.LRange(ctx, s.accountReportsKey(account), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("carbon/redis: list account reports: %w", err)
	}
	if len(ids) == 0 {
		return []*retirement.Report{}, nil
	}

	docs, err := s.client.HMGet(ctx, s.reportsKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("carbon/redis: list account reports: %w", err)
	}

	result := make([]*retirement.Report, 0, len(docs))
	for _, doc := range docs {
		raw, ok := doc.(string)
		if !ok {
			continue
		}
		var r retirement.Report
		if err := json.UnmarshalFromString(raw, &r); err != nil {
			return nil, fmt.Errorf("carbon/redis: decode report: %w", err)
		}
		result = append(result, &r)
	}
	return result, nil
}

// ==================== Helpers ====================

// nextSequence returns the current value of the named counter and
// increments it. Counters start at zero.
func (s *Store) nextSequence(ctx context.Context, name string) (uint64, error) {
	v, err := s.client.Incr(ctx, s.seqKey(name)).Result()
	if err != nil {
		return 0, err
	}
	return uint64(v - 1), nil
}
