package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// RetryConfig конфигурация для retry логики.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	// Jitter — верхняя граница случайной добавки к задержке.
	Jitter time.Duration
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию для платёжного шлюза:
// две попытки, базовая задержка 50мс, удвоение и джиттер до 50мс.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        50 * time.Millisecond,
	}
}

// Delay возвращает задержку перед повтором после attempt-й неудачной попытки (с 1).
func (c RetryConfig) Delay(attempt int, jitter func(time.Duration) time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(c.InitialDelay)
	factor := c.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	for i := 1; i < attempt; i++ {
		delay *= factor
	}
	result := time.Duration(delay)
	if c.MaxDelay > 0 && result > c.MaxDelay {
		result = c.MaxDelay
	}
	if c.Jitter > 0 && jitter != nil {
		result += jitter(c.Jitter)
	}
	return result
}

// Retrier выполняет операции с повторами по RetryConfig.
type Retrier struct {
	config  RetryConfig
	logger  *log.Entry
	jitter  func(time.Duration) time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	onRetry func(attempt int, err error)
}

// NewRetrier создаёт исполнитель повторов.
func NewRetrier(config RetryConfig, logger *log.Entry) *Retrier {
	if logger == nil {
		logger = log.New().WithField("component", "retry")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Retrier{
		config: config,
		logger: logger,
		jitter: randomJitter,
		sleep:  Sleep,
	}
}

// OnRetry задаёт хук, вызываемый перед каждой повторной попыткой.
func (r *Retrier) OnRetry(fn func(attempt int, err error)) *Retrier {
	r.onRetry = fn
	return r
}

// Config возвращает действующую конфигурацию.
func (r *Retrier) Config() RetryConfig {
	return r.config
}

// Do выполняет fn до MaxAttempts раз. Бизнес-ошибки и отмена контекста не повторяются.
func (r *Retrier) Do(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.WithFields(log.Fields{
					"operation": operation,
					"attempt":   attempt,
				}).Info("operation succeeded after retry")
			}
			return nil
		}

		lastErr = err

		// Проверяем, стоит ли повторять попытку
		if !ShouldRetry(err) {
			r.logger.WithFields(log.Fields{
				"operation": operation,
				"error":     err,
			}).Warn("operation failed with non-retryable error")
			return err
		}

		if attempt < r.config.MaxAttempts {
			delay := r.config.Delay(attempt, r.jitter)
			r.logger.WithFields(log.Fields{
				"operation": operation,
				"attempt":   attempt,
				"delay":     delay,
				"error":     err,
			}).Warn("operation failed, retrying")

			if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
				return sleepErr
			}
			if r.onRetry != nil {
				r.onRetry(attempt+1, err)
			}
		}
	}

	r.logger.WithFields(log.Fields{
		"operation":    operation,
		"max_attempts": r.config.MaxAttempts,
		"error":        lastErr,
	}).Error("operation failed after all retry attempts")

	return lastErr
}

// ShouldRetry определяет, стоит ли повторять операцию при данной ошибке.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Не повторяем при бизнес-логических ошибках
	if errors.Is(err, domain.ErrOrderNotFound) ||
		errors.Is(err, domain.ErrOrderVersionConflict) ||
		errors.Is(err, domain.ErrPaymentDeclined) ||
		errors.Is(err, domain.ErrInvalidTransition) {
		return false
	}

	// По умолчанию повторяем неизвестные ошибки
	return true
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit)))
}

// Sleep ждёт d или отмены ctx.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
