package telegram

import (
	"fmt"
	"sync"
	"time"

	"journalbot/pkg/logger"
)

// LoggingMiddleware logs command execution with timing
func LoggingMiddleware(log *logger.Logger) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			start := time.Now()

			err := next(ctx)
			duration := time.Since(start)

			if err != nil {
				log.Errorw("Command failed",
					"command", ctx.Command,
					"telegram_id", ctx.TelegramID,
					"duration_ms", duration.Milliseconds(),
					"error", err,
				)
			} else {
				log.Debugw("Command completed",
					"command", ctx.Command,
					"telegram_id", ctx.TelegramID,
					"duration_ms", duration.Milliseconds(),
				)
			}

			return err
		}
	}
}

// RecoveryMiddleware recovers from panics in command handlers
func RecoveryMiddleware(log *logger.Logger) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorw("Command handler panicked",
						"command", ctx.Command,
						"telegram_id", ctx.TelegramID,
						"panic", r,
					)
					err = fmt.Errorf("internal error")
					_ = ctx.Bot.SendMessage(ctx.ChatID, "❌ An unexpected error occurred.")
				}
			}()

			return next(ctx)
		}
	}
}

// RateLimitMiddleware prevents command spam (basic in-memory implementation)
func RateLimitMiddleware(maxPerMinute int, log *logger.Logger) CommandMiddleware {
	var mu sync.Mutex
	requests := make(map[int64][]time.Time)

	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			now := time.Now()
			cutoff := now.Add(-1 * time.Minute)

			mu.Lock()
			valid := requests[ctx.TelegramID][:0]
			for _, ts := range requests[ctx.TelegramID] {
				if ts.After(cutoff) {
					valid = append(valid, ts)
				}
			}
			limited := len(valid) >= maxPerMinute
			if !limited {
				valid = append(valid, now)
			}
			requests[ctx.TelegramID] = valid
			mu.Unlock()

			if limited {
				log.Warnw("Rate limit exceeded",
					"telegram_id", ctx.TelegramID,
					"command", ctx.Command,
				)
				return ctx.Bot.SendMessage(ctx.ChatID, "⏱️ Slow down! Please wait a moment before trying again.")
			}

			return next(ctx)
		}
	}
}

// MetricsMiddleware tracks command usage metrics
func MetricsMiddleware(record func(command string, success bool, duration time.Duration)) CommandMiddleware {
	return func(next CommandHandler) CommandHandler {
		return func(ctx *CommandContext) error {
			start := time.Now()
			err := next(ctx)
			record(ctx.Command, err == nil, time.Since(start))
			return err
		}
	}
}
