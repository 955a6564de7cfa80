package entity

// Template is a named title/body pattern with {{name}} placeholders.
type Template struct {
	Code          string           `json:"code"`
	TitleTemplate string           `json:"title_template"`
	BodyTemplate  string           `json:"body_template"`
	DefaultKind   NotificationKind `json:"default_kind"`
	DefaultIcon   string           `json:"default_icon"`
	Category      string           `json:"category"`
	Active        bool             `json:"active"`
}

// RenderedTemplate is the output of a render, ready to be turned into a notification.
type RenderedTemplate struct {
	Title    string           `json:"title"`
	Body     string           `json:"body"`
	Kind     NotificationKind `json:"kind"`
	Icon     string           `json:"icon"`
	Category string           `json:"category"`
}
