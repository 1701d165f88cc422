package handler

import (
	"net/http"
	"strconv"
	"time"

	"qrcall/internal/calls/models"
)

const dateLayout = "2006-01-02"

// parseHistoryFilter reads the history query string. Paging is clamped later
// by HistoryFilter.Normalize.
func parseHistoryFilter(r *http.Request) (models.HistoryFilter, error) {
	var f models.HistoryFilter
	var err error

	if f.Page, err = intQuery(r, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = intQuery(r, "limit"); err != nil {
		return f, err
	}
	if v := trimmedQuery(r, "emergencyOnly"); v != "" {
		if f.EmergencyOnly, err = strconv.ParseBool(v); err != nil {
			return f, models.ErrValidation("emergencyOnly must be true or false")
		}
	}
	if v := trimmedQuery(r, "emergencyType"); v != "" {
		f.EmergencyType = models.EmergencyType(v)
		if !f.EmergencyType.IsValid() {
			return f, models.ErrValidation("unsupported emergencyType")
		}
	}
	if v := trimmedQuery(r, "callMethod"); v != "" {
		f.CallMethod = models.CallMethod(v)
		if !f.CallMethod.IsValid() {
			return f, models.ErrValidation("callMethod must be direct or masked")
		}
	}
	f.DeviceID = trimmedQuery(r, "deviceId")

	if f.From, err = timeQuery(r, "dateFrom", false); err != nil {
		return f, err
	}
	if f.To, err = timeQuery(r, "dateTo", true); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, models.ErrValidation("dateTo must not be before dateFrom")
	}
	return f, nil
}

func intQuery(r *http.Request, key string) (int, error) {
	v := trimmedQuery(r, key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, models.ErrValidation(key + " must be a positive integer")
	}
	return n, nil
}

// timeQuery accepts RFC 3339 or a bare date. A bare dateTo covers the whole day.
func timeQuery(r *http.Request, key string, endOfDay bool) (*time.Time, error) {
	v := trimmedQuery(r, key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, models.ErrValidation(key + " must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
