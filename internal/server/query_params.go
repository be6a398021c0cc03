package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/merceton/merceton/internal/apperror"
)

const dateOnlyLayout = "2006-01-02"

func parseOptionalInt64(value string) (*int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed == 0 {
		return nil, errors.New("invalid_snowflake_id")
	}
	return &parsed, nil
}

// parseOptionalTime accepts RFC3339 or a bare date. A bare date used as an
// upper bound covers the whole day.
func parseOptionalTime(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		if endOfDay {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), time.UTC)
		} else {
			parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id == 0 {
		return 0, apperror.FieldValidation(name, "invalid_id", "invalid "+name)
	}
	return id, nil
}

type rangeQuery struct {
	From time.Time
	To   time.Time
	// Raw values as sent, for filenames.
	RawFrom string
	RawTo   string
}

func parseRange(c *gin.Context) (rangeQuery, error) {
	rawFrom := strings.TrimSpace(c.Query("from"))
	rawTo := strings.TrimSpace(c.Query("to"))
	from, err := parseOptionalTime(rawFrom, false)
	if err != nil {
		return rangeQuery{}, apperror.FieldValidation("from", "invalid_from", "from must be a date or RFC3339 time")
	}
	to, err := parseOptionalTime(rawTo, true)
	if err != nil {
		return rangeQuery{}, apperror.FieldValidation("to", "invalid_to", "to must be a date or RFC3339 time")
	}
	q := rangeQuery{RawFrom: rawFrom, RawTo: rawTo}
	if from != nil {
		q.From = *from
	}
	if to != nil {
		q.To = *to
	}
	return q, nil
}

// merchantQuery reads merchantId, accepting merchant_id as well.
func merchantQuery(c *gin.Context) (*snowflake.ID, error) {
	raw := c.Query("merchantId")
	if raw == "" {
		raw = c.Query("merchant_id")
	}
	id, err := parseOptionalSnowflakeID(raw)
	if err != nil {
		return nil, apperror.FieldValidation("merchantId", "invalid_merchant_id", "invalid merchant id")
	}
	return id, nil
}
