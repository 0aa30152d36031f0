package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"swmon/internal/watchdog"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// TimingQuery carries the optional watchdog timing parameters from the
// start/configure query string. All values are milliseconds except type,
// which selects the hardware event. Absent fields leave the stored
// parameter untouched.
type TimingQuery struct {
	Delay *uint32 `form:"delay" validate:"omitempty,max=65535000"`
	Event *uint32 `form:"event" validate:"omitempty,max=65535000"`
	Reset *uint32 `form:"reset" validate:"omitempty,min=1,max=65535000"`
	Type  *uint32 `form:"type" validate:"omitempty,max=4"`
}

// BindTimingQuery parses and validates the timing parameters of the current
// request. A nil error means the returned query is safe to apply.
func BindTimingQuery(c *gin.Context) (*TimingQuery, error) {
	var q TimingQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return nil, err
	}
	if err := validate.Struct(&q); err != nil {
		return nil, err
	}
	return &q, nil
}

// Apply overlays the present fields onto base and returns the result.
func (q *TimingQuery) Apply(base watchdog.Params) watchdog.Params {
	if q.Delay != nil {
		base.Delay = time.Duration(*q.Delay) * time.Millisecond
	}
	if q.Event != nil {
		base.Event = time.Duration(*q.Event) * time.Millisecond
	}
	if q.Reset != nil {
		base.Reset = time.Duration(*q.Reset) * time.Millisecond
	}
	if q.Type != nil {
		base.Type = watchdog.EventType(*q.Type)
	}
	return base
}
