package domain

import "time"

// Greeting returns the time-of-day salutation shown at the top of each dashboard
func Greeting(now time.Time) string {
	switch hour := now.Hour(); {
	case hour < 12:
		return "Good morning"
	case hour < 18:
		return "Good afternoon"
	default:
		return "Good evening"
	}
}

// AddressedGreeting greets someone by name, e.g. "Good evening, Dispatcher!"
func AddressedGreeting(now time.Time, name string) string {
	return Greeting(now) + ", " + name + "!"
}
