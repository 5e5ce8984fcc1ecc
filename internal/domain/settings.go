package domain

type NotificationSettings struct {
	Enabled       bool `json:"enabled"`
	OrderUpdates  bool `json:"orderUpdates"`
	DriverUpdates bool `json:"driverUpdates"`
	ChatMessages  bool `json:"chatMessages"`
	Promotions    bool `json:"promotions"`
	Sound         bool `json:"sound"`
	Vibration     bool `json:"vibration"`
}

func DefaultSettings() NotificationSettings {
	return NotificationSettings{
		Enabled:       true,
		OrderUpdates:  true,
		DriverUpdates: true,
		ChatMessages:  true,
		Promotions:    false,
		Sound:         true,
		Vibration:     true,
	}
}

// SettingsPatch is a partial update; nil fields are left unchanged.
type SettingsPatch struct {
	Enabled       *bool `json:"enabled,omitempty"`
	OrderUpdates  *bool `json:"orderUpdates,omitempty"`
	DriverUpdates *bool `json:"driverUpdates,omitempty"`
	ChatMessages  *bool `json:"chatMessages,omitempty"`
	Promotions    *bool `json:"promotions,omitempty"`
	Sound         *bool `json:"sound,omitempty"`
	Vibration     *bool `json:"vibration,omitempty"`
}

func (s NotificationSettings) Apply(p SettingsPatch) NotificationSettings {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&s.Enabled, p.Enabled)
	set(&s.OrderUpdates, p.OrderUpdates)
	set(&s.DriverUpdates, p.DriverUpdates)
	set(&s.ChatMessages, p.ChatMessages)
	set(&s.Promotions, p.Promotions)
	set(&s.Sound, p.Sound)
	set(&s.Vibration, p.Vibration)
	return s
}
