package whitelist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/basemint/whitelist-backend/interfaces"
)

const (
	identityKeyPrefix = "whitelist:id:"
	walletKeyPrefix   = "whitelist:wallet:"
	identityIndexKey  = "whitelist:identities"

	// txRetries bounds optimistic-lock retries before giving up.
	txRetries = 5
)

// RedisStore keeps one record per identity key and per wallet key, plus a
// set of identity ids for enumeration. CreateLink and ClaimMint run as
// WATCH transactions over both record keys, so the read-modify-write cycle
// is atomic even across service instances.
type RedisStore struct {
	client *redis.Client
	log    *slog.Logger
	now    func() time.Time
}

// NewRedisStore creates a redis-backed store and verifies connectivity.
func NewRedisStore(ctx context.Context, opt *redis.Options, log *slog.Logger) (*RedisStore, error) {
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: redis ping: %v", interfaces.ErrUpstream, err)
	}
	return &RedisStore{client: client, log: log, now: time.Now}, nil
}

// WithClock returns a copy of the store using the given time source.
func (s *RedisStore) WithClock(now func() time.Time) *RedisStore {
	return &RedisStore{client: s.client, log: s.log, now: now}
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func identityKey(id interfaces.IdentityID) string {
	return identityKeyPrefix + string(id)
}

func walletKey(wallet interfaces.WalletAddress) string {
	return walletKeyPrefix + string(wallet)
}

func (s *RedisStore) getRecord(ctx context.Context, c redis.Cmdable, key string) (interfaces.LinkRecord, bool, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return interfaces.LinkRecord{}, false, nil
	}
	if err != nil {
		return interfaces.LinkRecord{}, false, fmt.Errorf("%w: redis get: %v", interfaces.ErrUpstream, err)
	}

	var record interfaces.LinkRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return interfaces.LinkRecord{}, false, fmt.Errorf("failed to decode link record %s: %w", key, err)
	}
	return record, true, nil
}

func (s *RedisStore) CreateLink(ctx context.Context, id interfaces.IdentityID, handle string, wallet interfaces.WalletAddress) (interfaces.LinkRecord, error) {
	record := interfaces.LinkRecord{
		IdentityID: id,
		Handle:     handle,
		Wallet:     wallet,
		LinkedAt:   s.now().UTC(),
	}

	txn := func(tx *redis.Tx) error {
		if existing, ok, err := s.getRecord(ctx, tx, identityKey(id)); err != nil {
			return err
		} else if ok {
			return &interfaces.AlreadyLinkedIdentityError{IdentityID: id, Wallet: existing.Wallet}
		}

		if existing, ok, err := s.getRecord(ctx, tx, walletKey(wallet)); err != nil {
			return err
		} else if ok {
			return &interfaces.AlreadyLinkedWalletError{Wallet: wallet, Handle: existing.Handle}
		}

		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode link record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, identityKey(id), payload, 0)
			pipe.Set(ctx, walletKey(wallet), payload, 0)
			pipe.SAdd(ctx, identityIndexKey, string(id))
			return nil
		})
		return err
	}

	if err := s.watch(ctx, txn, identityKey(id), walletKey(wallet)); err != nil {
		return interfaces.LinkRecord{}, err
	}

	s.log.Info("Link created", "identity", id, "handle", handle, "wallet", wallet)
	return record, nil
}

func (s *RedisStore) ByIdentity(ctx context.Context, id interfaces.IdentityID) (interfaces.LinkRecord, bool, error) {
	return s.getRecord(ctx, s.client, identityKey(id))
}

func (s *RedisStore) ByWallet(ctx context.Context, wallet interfaces.WalletAddress) (interfaces.LinkRecord, bool, error) {
	return s.getRecord(ctx, s.client, walletKey(wallet))
}

func (s *RedisStore) ClaimMint(ctx context.Context, wallet interfaces.WalletAddress) (interfaces.LinkRecord, error) {
	var claimed interfaces.LinkRecord

	txn := func(tx *redis.Tx) error {
		record, ok, err := s.getRecord(ctx, tx, walletKey(wallet))
		if err != nil {
			return err
		}
		if !ok {
			return interfaces.ErrNotLinked
		}
		if record.MintClaimed {
			return &interfaces.AlreadyMintedError{Wallet: wallet, Handle: record.Handle}
		}

		claimedAt := s.now().UTC()
		record.MintClaimed = true
		record.MintClaimedAt = &claimedAt

		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode link record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, identityKey(record.IdentityID), payload, 0)
			pipe.Set(ctx, walletKey(wallet), payload, 0)
			return nil
		})
		if err != nil {
			return err
		}

		claimed = record
		return nil
	}

	if err := s.watch(ctx, txn, walletKey(wallet)); err != nil {
		return interfaces.LinkRecord{}, err
	}

	s.log.Info("Mint claimed", "wallet", wallet, "handle", claimed.Handle)
	return claimed, nil
}

func (s *RedisStore) MarkMintClaimed(ctx context.Context, wallet interfaces.WalletAddress) error {
	txn := func(tx *redis.Tx) error {
		record, ok, err := s.getRecord(ctx, tx, walletKey(wallet))
		if err != nil {
			return err
		}
		if !ok {
			return interfaces.ErrNotLinked
		}

		claimedAt := s.now().UTC()
		record.MintClaimed = true
		record.MintClaimedAt = &claimedAt

		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode link record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, identityKey(record.IdentityID), payload, 0)
			pipe.Set(ctx, walletKey(wallet), payload, 0)
			return nil
		})
		return err
	}

	return s.watch(ctx, txn, walletKey(wallet))
}

func (s *RedisStore) All(ctx context.Context) ([]interfaces.LinkRecord, error) {
	ids, err := s.client.SMembers(ctx, identityIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis smembers: %v", interfaces.ErrUpstream, err)
	}

	records := make([]interfaces.LinkRecord, 0, len(ids))
	for _, id := range ids {
		record, ok, err := s.getRecord(ctx, s.client, identityKeyPrefix+id)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].LinkedAt.Before(records[j].LinkedAt)
	})
	return records, nil
}

func (s *RedisStore) Remove(ctx context.Context, id interfaces.IdentityID) error {
	txn := func(tx *redis.Tx) error {
		record, ok, err := s.getRecord(ctx, tx, identityKey(id))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, identityKey(id))
			pipe.Del(ctx, walletKey(record.Wallet))
			pipe.SRem(ctx, identityIndexKey, string(id))
			return nil
		})
		return err
	}

	return s.watch(ctx, txn, identityKey(id))
}

func (s *RedisStore) Stats(ctx context.Context) (interfaces.Stats, error) {
	records, err := s.All(ctx)
	if err != nil {
		return interfaces.Stats{}, err
	}

	stats := interfaces.Stats{TotalLinked: len(records)}
	for _, record := range records {
		if record.MintClaimed {
			stats.TotalMinted++
		}
	}
	stats.Remaining = stats.TotalLinked - stats.TotalMinted
	return stats, nil
}

// watch runs txn under optimistic locking, retrying on conflicting
// concurrent writes to the watched keys.
func (s *RedisStore) watch(ctx context.Context, txn func(*redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < txRetries; attempt++ {
		err := s.client.Watch(ctx, txn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: transaction contention on %v", interfaces.ErrUpstream, keys)
}
