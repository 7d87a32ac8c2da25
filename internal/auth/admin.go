package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"summit-ticketing/internal/logger"

	"github.com/go-redis/redis/v8"
)

const adminCacheKeyPrefix = "admin_priv:"

// AdminDirectory resolves an identity to administrator privilege via the
// admin service, caching answers in Redis so repeated checks don't hammer
// the directory. The cache holds both positive and negative answers.
type AdminDirectory struct {
	Client   *http.Client
	Redis    *redis.Client
	BaseURL  string
	CacheTTL time.Duration
	Logger   *logger.Logger
}

func NewAdminDirectory(client *http.Client, rdb *redis.Client, baseURL string, cacheTTL time.Duration, log *logger.Logger) *AdminDirectory {
	return &AdminDirectory{
		Client:   client,
		Redis:    rdb,
		BaseURL:  baseURL,
		CacheTTL: cacheTTL,
		Logger:   log,
	}
}

func (d *AdminDirectory) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	key := adminCacheKeyPrefix + userID
	if d.Redis != nil {
		if val, err := d.Redis.Get(ctx, key).Result(); err == nil {
			return val == "1", nil
		} else if err != redis.Nil {
			d.Logger.Warn("AUTH", fmt.Sprintf("admin cache read failed for %s: %v", userID, err))
		}
	}

	admin, err := d.lookup(ctx, userID)
	if err != nil {
		return false, err
	}

	if d.Redis != nil {
		val := "0"
		if admin {
			val = "1"
		}
		if err := d.Redis.Set(ctx, key, val, d.CacheTTL).Err(); err != nil {
			d.Logger.Warn("AUTH", fmt.Sprintf("admin cache write failed for %s: %v", userID, err))
		}
	}
	return admin, nil
}

func (d *AdminDirectory) lookup(ctx context.Context, userID string) (bool, error) {
	url := fmt.Sprintf("%s/internal/v1/admins/%s", d.BaseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create admin lookup request: %w", err)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return false, fmt.Errorf("admin directory error: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("admin directory returned status %d", resp.StatusCode)
	}
}

// AdminOnly rejects unauthenticated requests with 401 and authenticated
// non-administrators with 403.
func AdminOnly(dir *AdminDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserID(r.Context())
			if userID == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			admin, err := dir.IsAdmin(r.Context(), userID)
			if err != nil {
				dir.Logger.Error("AUTH", fmt.Sprintf("admin check failed for %s: %v", userID, err))
				http.Error(w, "failed to verify privileges", http.StatusInternalServerError)
				return
			}
			if !admin {
				http.Error(w, "administrator privilege required", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
