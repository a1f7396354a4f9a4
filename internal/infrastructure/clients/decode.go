package clients

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/logistics-platform/booking-dashboard/internal/domain"
)

// errUnexpectedShape marks a 2xx body whose top level is not what the endpoint returns
var errUnexpectedShape = errors.New("unexpected response shape")

var (
	timeType    = reflect.TypeOf(time.Time{})
	dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
)

// Field aliases the booking API uses interchangeably. The canonical key wins
// when both are present.
var (
	bookingAliases = map[string]string{
		"_id":  "id",
		"from": "origin",
		"to":   "destination",
		"date": "createdAt",
		"mode": "modeOfTransport",
	}
	userAliases = map[string]string{
		"_id": "id",
	}
)

// requireSuccess unwraps a {success, message, ...} envelope. success must be
// literally true; anything else is an APIError carrying the server message.
func requireSuccess(op string, payload any) (map[string]any, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, &APIError{Op: op, Status: http.StatusOK, Cause: errUnexpectedShape}
	}
	if success, _ := obj["success"].(bool); !success {
		msg, _ := obj["message"].(string)
		return nil, &APIError{Op: op, Status: http.StatusOK, Message: msg}
	}
	return obj, nil
}

// reportPayload returns the report body of an admin reports envelope, which
// is sent as reportData or data depending on the report.
func reportPayload(obj map[string]any) map[string]any {
	if data, ok := obj["reportData"].(map[string]any); ok {
		return data
	}
	if data, ok := obj["data"].(map[string]any); ok {
		return data
	}
	return map[string]any{}
}

// decodeLenient decodes a loosely typed JSON value into out. Scalars that do
// not fit the target type decode to the zero value instead of failing.
func decodeLenient(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(lenientTimeHook, lenientScalarHook),
		Result:     out,
		TagName:    "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func lenientTimeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, nil
}

func lenientScalarHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Float32, reflect.Float64:
		return toFloat(data), nil
	case reflect.String:
		switch v := data.(type) {
		case string:
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(v), nil
		default:
			return "", nil
		}
	}
	return data, nil
}

// toFloat coerces a JSON scalar to a finite number; anything else is 0
func toFloat(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		f, _ = n.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// finiteNumber returns v when it is a JSON number
func finiteNumber(v any) (float64, bool) {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func withAliases(m map[string]any, aliases map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	for alias, canonical := range aliases {
		v, ok := m[alias]
		if !ok {
			continue
		}
		if existing, has := m[canonical]; !has || existing == nil {
			out[canonical] = v
		}
	}
	return out
}

// decodeBookings decodes a JSON array of bookings. Non-object items are dropped.
func decodeBookings(raw any) []domain.BookingRecord {
	items, _ := raw.([]any)
	out := make([]domain.BookingRecord, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var b domain.BookingRecord
		if err := decodeLenient(withAliases(m, bookingAliases), &b); err != nil {
			continue
		}
		if b.Amount < 0 {
			b.Amount = 0
		}
		b.Progress = clampPercent(b.Progress)
		out = append(out, b)
	}
	return out
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// decodeUsers decodes a JSON array of users. Records with missing fields are
// kept; the directory model decides what is displayable.
func decodeUsers(raw any) []domain.UserRecord {
	items, _ := raw.([]any)
	out := make([]domain.UserRecord, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var u domain.UserRecord
		if err := decodeLenient(withAliases(m, userAliases), &u); err != nil {
			continue
		}
		out = append(out, u)
	}
	return out
}

func decodeBookingsReport(data map[string]any) domain.BookingsReport {
	report := domain.BookingsReport{
		Bookings: decodeBookings(data["bookings"]),
	}
	if f, ok := finiteNumber(data["totalBookings"]); ok {
		n := int64(f)
		report.TotalBookings = &n
	}
	if f, ok := finiteNumber(data["totalRevenue"]); ok {
		report.TotalRevenue = &f
	}
	if counts, ok := data["statusCounts"].(map[string]any); ok {
		report.StatusCounts = make(map[string]int64, len(counts))
		for status, v := range counts {
			report.StatusCounts[status] = int64(toFloat(v))
		}
	}
	return report
}

func decodeReport(reportType domain.ReportType, data map[string]any) *domain.Report {
	return &domain.Report{
		Type:               reportType,
		Summary:            decodeSummary(data),
		StatusBreakdown:    decodeStatusBreakdown(data["statusBreakdown"]),
		TransportBreakdown: decodeTransportBreakdown(data["transportBreakdown"]),
		Bookings:           decodeBookings(data["bookings"]),
	}
}

// decodeSummary reads headline numbers from summary.* first, then from the
// top level of the report.
func decodeSummary(data map[string]any) domain.ReportSummary {
	summary, _ := data["summary"].(map[string]any)
	pick := func(key string) (any, bool) {
		if v, ok := summary[key]; ok && v != nil {
			return v, true
		}
		if v, ok := data[key]; ok && v != nil {
			return v, true
		}
		return nil, false
	}

	var s domain.ReportSummary
	if v, ok := pick("totalBookings"); ok {
		s.TotalBookings = int64(toFloat(v))
	}
	if v, ok := pick("totalRevenue"); ok {
		s.TotalRevenue = toFloat(v)
	}
	if v, ok := pick("averageOrderValue"); ok {
		if f, ok := finiteNumber(v); ok {
			s.AverageOrderValue = &f
		}
	}
	if v, ok := pick("completionRate"); ok {
		if f, ok := finiteNumber(v); ok {
			s.CompletionRate = &f
		}
	}
	return s
}

// looksLikeRecord reports whether a breakdown item is really an entity record
// (a user or booking document) rather than a share row.
func looksLikeRecord(m map[string]any) bool {
	for _, key := range []string{"_id", "name", "email"} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}

func decodeStatusBreakdown(raw any) []domain.StatusBreakdownEntry {
	items, _ := raw.([]any)
	out := make([]domain.StatusBreakdownEntry, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if looksLikeRecord(m) {
			out = append(out, domain.StatusBreakdownEntry{Unrecognized: &domain.Unrecognized{Raw: m}})
			continue
		}
		var share domain.StatusShare
		if err := decodeLenient(m, &share); err != nil {
			out = append(out, domain.StatusBreakdownEntry{Unrecognized: &domain.Unrecognized{Raw: m}})
			continue
		}
		out = append(out, domain.StatusBreakdownEntry{Share: &share})
	}
	return out
}

func decodeTransportBreakdown(raw any) []domain.TransportBreakdownEntry {
	items, _ := raw.([]any)
	out := make([]domain.TransportBreakdownEntry, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if looksLikeRecord(m) {
			out = append(out, domain.TransportBreakdownEntry{Unrecognized: &domain.Unrecognized{Raw: m}})
			continue
		}
		var share domain.TransportShare
		if err := decodeLenient(m, &share); err != nil {
			out = append(out, domain.TransportBreakdownEntry{Unrecognized: &domain.Unrecognized{Raw: m}})
			continue
		}
		out = append(out, domain.TransportBreakdownEntry{Share: &share})
	}
	return out
}

// unwrapOptionalEnvelope accepts either a bare payload or a {success, data}
// envelope around it.
func unwrapOptionalEnvelope(op string, payload any) (any, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return payload, nil
	}
	if _, enveloped := obj["success"]; !enveloped {
		return payload, nil
	}
	obj, err := requireSuccess(op, obj)
	if err != nil {
		return nil, err
	}
	return obj["data"], nil
}
