package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery turns a panicking handler into a 500. The panic is logged through
// the request-scoped logger when Logger has already attached one.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				log := zerolog.Ctx(c.Request().Context())
				if log.GetLevel() == zerolog.Disabled {
					rid, _ := c.Get("request_id").(string)
					l := logger.With().Str("request_id", rid).Logger()
					log = &l
				}

				buf := make([]byte, 4<<10)
				buf = buf[:runtime.Stack(buf, false)]
				log.Error().
					Str("panic", fmt.Sprint(r)).
					Str("path", c.Request().URL.Path).
					Bytes("stack", buf).
					Msg("handler panicked")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
