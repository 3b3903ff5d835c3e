package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type DateFormat string

const (
	FormatISO8601     DateFormat = "2006-01-02T15:04:05Z07:00"
	FormatISO8601Date DateFormat = "2006-01-02"
	FormatSlashDate   DateFormat = "2006/01/02"
	FormatDotDate     DateFormat = "2006.01.02"
	FormatJapanese    DateFormat = "2006年1月2日"
	FormatYearMonth   DateFormat = "2006-01"
	FormatUnixTime    DateFormat = "unix"
)

type DateValidator struct {
	supportedFormats []DateFormat
	location         *time.Location
}

type ValidationResult struct {
	IsValid        bool
	DetectedFormat DateFormat
	ParsedTime     time.Time
	OriginalValue  string
}

func NewDateValidator() *DateValidator {
	return &DateValidator{
		supportedFormats: []DateFormat{
			FormatISO8601,
			FormatISO8601Date,
			FormatSlashDate,
			FormatDotDate,
			FormatJapanese,
			FormatYearMonth,
		},
		location: time.UTC,
	}
}

func (dv *DateValidator) ValidateAndConvert(input string) ValidationResult {
	result := ValidationResult{
		IsValid:       false,
		OriginalValue: input,
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return result
	}

	if unixTime, err := strconv.ParseInt(input, 10, 64); err == nil {
		if unixTime > 0 && unixTime < 4102444800 { // 1970-2100
			result.IsValid = true
			result.DetectedFormat = FormatUnixTime
			result.ParsedTime = time.Unix(unixTime, 0).UTC()
			return result
		}
	}

	for _, format := range dv.supportedFormats {
		if parsedTime, err := time.ParseInLocation(string(format), input, dv.location); err == nil {
			result.IsValid = true
			result.DetectedFormat = format
			result.ParsedTime = parsedTime.UTC()
			return result
		}
	}

	return result
}

// ParseDateRange resolves optional start/end query values into a range.
// Missing end means now; missing start means defaultDays before end. A
// date-only end is extended to the end of that day.
func (dv *DateValidator) ParseDateRange(start, end string, defaultDays int, now time.Time) (time.Time, time.Time, error) {
	rangeEnd := now.UTC()
	if strings.TrimSpace(end) != "" {
		result := dv.ValidateAndConvert(end)
		if !result.IsValid {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", end)
		}
		rangeEnd = result.ParsedTime
		if result.DetectedFormat != FormatISO8601 && result.DetectedFormat != FormatUnixTime {
			rangeEnd = rangeEnd.Add(24*time.Hour - time.Nanosecond)
		}
	}

	rangeStart := rangeEnd.AddDate(0, 0, -defaultDays)
	if strings.TrimSpace(start) != "" {
		result := dv.ValidateAndConvert(start)
		if !result.IsValid {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", start)
		}
		rangeStart = result.ParsedTime
	}

	if rangeEnd.Before(rangeStart) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date is before start date")
	}

	return rangeStart, rangeEnd, nil
}

func (dv *DateValidator) GetSupportedFormats() []DateFormat {
	return dv.supportedFormats
}
