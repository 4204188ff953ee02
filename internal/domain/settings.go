package domain

const (
	MinReminderInterval = 1
	MaxReminderInterval = 120
	MinWaitSeconds      = 1
	MaxWaitSeconds      = 300
	MinUISize           = 1
	MaxUISize           = 3
)

// Settings are the persisted scalar preferences.
type Settings struct {
	IntervalMinutes int  `json:"interval_minutes"`
	WaitSeconds     int  `json:"wait_seconds"`
	SoundEnabled    bool `json:"sound_enabled"`
	AutoStart       bool `json:"auto_start"`
	UISize          int  `json:"ui_size"`
}

func DefaultSettings() Settings {
	return Settings{
		IntervalMinutes: 30,
		WaitSeconds:     5,
		SoundEnabled:    true,
		AutoStart:       false,
		UISize:          2,
	}
}

func (s Settings) Validate() error {
	if s.IntervalMinutes < MinReminderInterval || s.IntervalMinutes > MaxReminderInterval {
		return invalid("interval_minutes", "must be between 1 and 120")
	}
	if s.WaitSeconds < MinWaitSeconds || s.WaitSeconds > MaxWaitSeconds {
		return invalid("wait_seconds", "must be between 1 and 300")
	}
	if s.UISize < MinUISize || s.UISize > MaxUISize {
		return invalid("ui_size", "must be between 1 and 3")
	}
	return nil
}

// WindowPosition is the last saved position of the compact reminder window.
type WindowPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}
