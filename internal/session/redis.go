package session

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const sessionKey = "wallet:session"

// RedisStore 把会话持久化到 Redis hash，进程重启后仍可恢复登录态
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context) (Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey).Result()
	if err != nil {
		return Session{}, err
	}
	loggedIn, _ := strconv.ParseBool(fields["isLoggedIn"])
	return Session{
		WalletAddress: fields["walletAddress"],
		IsLoggedIn:    loggedIn,
	}, nil
}

func (s *RedisStore) SetWalletAddress(ctx context.Context, address string) error {
	if address == "" {
		// 清掉地址的同时必须退出登录，保持不变式
		return s.client.HSet(ctx, sessionKey, "walletAddress", "", "isLoggedIn", "false").Err()
	}
	return s.client.HSet(ctx, sessionKey, "walletAddress", address).Err()
}

func (s *RedisStore) SetLoggedIn(ctx context.Context, loggedIn bool) error {
	if loggedIn {
		current, err := s.Get(ctx)
		if err != nil {
			return err
		}
		if current.WalletAddress == "" {
			return ErrLoginWithoutWallet
		}
	}
	return s.client.HSet(ctx, sessionKey, "isLoggedIn", strconv.FormatBool(loggedIn)).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, sessionKey).Err()
}
