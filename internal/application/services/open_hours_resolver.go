package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// hoursPattern matches "H:MM AM – H:MM PM" tolerating hyphen, en-dash, and
// em-dash between the endpoints.
var hoursPattern = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*([AP]M)\s*[-–—]\s*(\d{1,2}):(\d{2})\s*([AP]M)`)

// OpenHoursResolver derives a live open/closed signal from free-text weekly
// hours and the clinic's state timezone. Anything unparseable resolves to
// closed; the resolver never fails.
type OpenHoursResolver struct {
	now func() time.Time
}

// NewOpenHoursResolver creates a resolver using the wall clock
func NewOpenHoursResolver() *OpenHoursResolver {
	return &OpenHoursResolver{now: time.Now}
}

// NewOpenHoursResolverWithClock allows a fixed clock, for tests
func NewOpenHoursResolverWithClock(now func() time.Time) *OpenHoursResolver {
	return &OpenHoursResolver{now: now}
}

// IsOpenNow reports whether the clinic is open at this moment in its state's
// local time. Closed and unknown collapse to false.
func (r *OpenHoursResolver) IsOpenNow(weeklyHours []string, stateCode string) bool {
	if len(weeklyHours) == 0 {
		return false
	}

	location, err := time.LoadLocation(timezoneForState(stateCode))
	if err != nil {
		log.Warn().Err(err).Str("state_code", stateCode).Msg("failed to load timezone, treating as closed")
		return false
	}

	localNow := r.now().In(location)
	weekday := localNow.Weekday().String()

	line := findWeekdayLine(weeklyHours, weekday)
	if line == "" {
		return false
	}

	if strings.Contains(strings.ToLower(line), "closed") {
		return false
	}

	match := hoursPattern.FindStringSubmatch(line)
	if match == nil {
		log.Warn().Str("line", line).Msg("unparseable weekly hours text, treating as closed")
		return false
	}

	opensAt := minutesSinceMidnight(match[1], match[2], match[3])
	closesAt := minutesSinceMidnight(match[4], match[5], match[6])
	current := localNow.Hour()*60 + localNow.Minute()

	// The closing minute itself counts as closed.
	if closesAt <= opensAt {
		// Hours crossing midnight, e.g. 8:00 PM – 2:00 AM.
		return current >= opensAt || current < closesAt
	}
	return current >= opensAt && current < closesAt
}

func findWeekdayLine(weeklyHours []string, weekday string) string {
	for _, line := range weeklyHours {
		if strings.HasPrefix(strings.TrimSpace(line), weekday) {
			return line
		}
	}
	return ""
}

// minutesSinceMidnight converts 12-hour clock fields; 12 AM is 00:00 and
// 12 PM is 12:00.
func minutesSinceMidnight(hourText, minuteText, meridiem string) int {
	hour, _ := strconv.Atoi(hourText)
	minute, _ := strconv.Atoi(minuteText)

	hour = hour % 12
	if strings.EqualFold(meridiem, "PM") {
		hour += 12
	}
	return hour*60 + minute
}
