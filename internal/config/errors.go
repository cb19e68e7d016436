package config

import "errors"

var (
	errCheckDelayBounds = errors.New(
		"check_delay_min must not exceed check_delay_max",
	)

	errNonPositiveThreshold = errors.New(
		"idle_threshold must be a positive duration",
	)

	errInvalidDateRange = errors.New(
		"the end date must not be earlier than the start date",
	)

	errInvalidPeriod = errors.New(
		"please provide a valid time period",
	)

	errInvalidStartDate = errors.New(
		"please provide a valid start date",
	)
)
