package utils

import (
	"log"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar calculates trading sessions using scmhub/calendar.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// micForSymbol maps a symbol suffix to a MIC code (ISO 10383). ok is false
// for bare symbols, which follow the configured default exchange.
func micForSymbol(symbol string) (string, bool) {
	// Candle symbols carry an attribute block: SPY{=5m,tho=true}
	if i := strings.IndexByte(symbol, '{'); i >= 0 {
		symbol = symbol[:i]
	}

	switch {
	case strings.HasSuffix(symbol, ".L"):
		return "xlon", true
	case strings.HasSuffix(symbol, ".PA"):
		return "xpar", true
	case strings.HasSuffix(symbol, ".DE"):
		return "xfra", true
	case strings.HasSuffix(symbol, ".AS"):
		return "xams", true
	case strings.HasSuffix(symbol, ".BR"):
		return "xbru", true
	case strings.HasSuffix(symbol, ".MI"):
		return "xmil", true
	case strings.HasSuffix(symbol, ".MC"):
		return "xmad", true
	case strings.HasSuffix(symbol, ".ST"):
		return "xsto", true
	case strings.HasSuffix(symbol, ".CO"):
		return "xcse", true
	case strings.HasSuffix(symbol, ".HE"):
		return "xhel", true
	case strings.HasSuffix(symbol, ".VI"):
		return "xwbo", true
	case strings.HasSuffix(symbol, ".SW"):
		return "xswx", true
	case strings.HasSuffix(symbol, ".TO"):
		return "xtse", true
	case strings.HasSuffix(symbol, ".V"):
		return "xtsx", true
	case strings.HasSuffix(symbol, ".T"):
		return "xtks", true
	case strings.HasSuffix(symbol, ".HK"):
		return "xhkg", true
	case strings.HasSuffix(symbol, ".AX"):
		return "xasx", true
	case strings.HasSuffix(symbol, ".KS"):
		return "xkrx", true
	case strings.HasSuffix(symbol, ".TW"):
		return "xtai", true
	case strings.HasSuffix(symbol, ".SS"):
		return "xshg", true
	case strings.HasSuffix(symbol, ".SZ"):
		return "xshe", true
	}
	return "", false
}

// -----------------------------------------------------------------------------

// micForExchange maps common exchange names from config to MIC codes.
func micForExchange(name string) string {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "NYSE":
		return "xnys"
	case "NASDAQ":
		return "xnas"
	case "LSE":
		return "xlon"
	case "TSX":
		return "xtse"
	case "EURONEXT", "PARIS":
		return "xpar"
	case "XETRA", "FRANKFURT":
		return "xfra"
	case "TOKYO", "TSE":
		return "xtks"
	case "HKEX":
		return "xhkg"
	case "ASX":
		return "xasx"
	default:
		// Allow raw MIC codes too
		return strings.ToLower(strings.TrimSpace(name))
	}
}

// -----------------------------------------------------------------------------

// GetCalendar returns the calendar for a symbol based on its suffix,
// defaulting to NYSE for bare US symbols.
func GetCalendar(symbol string) *TradingCalendar {
	mic, ok := micForSymbol(symbol)
	if !ok {
		mic = "xnys"
	}
	return loadCalendar(mic)
}

// -----------------------------------------------------------------------------

// GetCalendarForExchange returns the calendar for a configured exchange name.
func GetCalendarForExchange(name string) *TradingCalendar {
	return loadCalendar(micForExchange(name))
}

// -----------------------------------------------------------------------------

func loadCalendar(mic string) *TradingCalendar {
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		// Fallback to xnys if not found
		cal = calendar.GetCalendar("xnys")
	}

	if cal == nil {
		log.Printf("WARNING: Failed to load calendar for MIC '%s' and fallback 'xnys'. Using simple fallback (Mon-Fri 09:30-16:00 NY).", mic)
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC // Worst case
		}
		return &TradingCalendar{Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		// Simple fallback: Mon-Fri
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}

		hour := t.Hour()
		minute := t.Minute()

		// 9:30 - 16:00 NY Time
		if (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16 {
			return true
		}
		return false
	}

	return tc.Calendar.IsOpen(t)
}
