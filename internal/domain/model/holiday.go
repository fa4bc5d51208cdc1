package model

import "time"

// HolidayRegion is one region (a Bundesland for the German locale) whose
// school holidays contribute to the weekly holiday share.
type HolidayRegion struct {
	Code string `yaml:"code" mapstructure:"code"`
	Name string `yaml:"name" mapstructure:"name"`
}

// Holiday is one day of school holiday in one region. Multi-day holiday
// periods arrive expanded into per-day records.
type Holiday struct {
	Date   time.Time
	Region string
	Name   string
}
