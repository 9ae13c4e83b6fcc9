package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthPingTimeout = 5 * time.Second

// poolGauges is the connection pool snapshot attached to health responses.
type poolGauges struct {
	Total int32 `json:"total"`
	Idle  int32 `json:"idle"`
	InUse int32 `json:"in_use"`
	Max   int32 `json:"max"`
}

func snapshotPool(pool *pgxpool.Pool) poolGauges {
	st := pool.Stat()
	return poolGauges{
		Total: st.TotalConns(),
		Idle:  st.IdleConns(),
		InUse: st.AcquiredConns(),
		Max:   st.MaxConns(),
	}
}

// HealthHandler serves GET /health. The API is unusable without the database,
// so the check pings it and answers 503 when the ping fails, with current pool
// gauges in either case.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthPingTimeout)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   snapshotPool(pool),
			})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status": "healthy",
			"pool":   snapshotPool(pool),
		})
	}
}
