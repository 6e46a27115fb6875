package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

const defaultKeyTTL = 24 * time.Hour

// Guard хранит ответы на запросы с Idempotency-Key и отдаёт их при повторе.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// NewGuard создаёт Guard. ttl задаёт, сколько живёт сохранённый ответ.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = defaultKeyTTL
	}
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.WithField("component", "idempotency"),
	}
}

// HashRequest возвращает отпечаток запроса: метод, путь и тело.
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(method)))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// ScopedKey привязывает клиентский ключ к пользователю: одинаковые ключи разных
// пользователей не пересекаются. Анонимные запросы делят общую область.
func ScopedKey(userID int64, key string) string {
	if userID <= 0 {
		return "anon:" + key
	}
	return "user:" + strconv.FormatInt(userID, 10) + ":" + key
}

// Begin захватывает ключ. Если запрос с этим ключом уже завершён, возвращает
// сохранённую запись для повтора ответа. Запрос в обработке даёт
// ErrIdempotencyKeyAlreadyExists, другое тело с тем же ключом даёт ErrIdempotencyHashMismatch.
func (g *Guard) Begin(ctx context.Context, key, requestHash string) (*domain.IdempotencyRecord, error) {
	record, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Status == domain.IdempotencyStatusDone || record.Status == domain.IdempotencyStatusFailed {
			return &record, nil
		}
		return nil, err
	default:
		return nil, err
	}
}

// Complete сохраняет ответ. Ответы 5xx помечают ключ как failed.
func (g *Guard) Complete(ctx context.Context, key string, httpStatus int, body []byte) {
	ctx = context.WithoutCancel(ctx)

	var err error
	if httpStatus >= http.StatusInternalServerError {
		err = g.repo.MarkFailed(ctx, key, body, httpStatus)
	} else {
		err = g.repo.MarkDone(ctx, key, body, httpStatus)
	}
	if err != nil {
		g.logger.WithError(err).WithFields(log.Fields{
			"idempotency_key": key,
			"http_status":     httpStatus,
		}).Warn("failed to store idempotent response")
	}
}

// Replay проверяет, что у записи есть сохранённый ответ.
func Replay(record domain.IdempotencyRecord) (int, []byte, error) {
	if record.HTTPStatus == 0 {
		return 0, nil, fmt.Errorf("idempotency key %s has no stored response", record.Key)
	}
	return record.HTTPStatus, record.ResponseBody, nil
}
