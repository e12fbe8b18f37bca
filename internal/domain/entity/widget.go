package entity

// Container is the abstract handle a widget renders into. The host shell
// supplies a concrete implementation backed by its rendering layer.
type Container interface {
	SetTitle(title string)
	SetBody(body string)
}

// WidgetRenderFunc renders a widget into a container.
type WidgetRenderFunc func(container Container) error

// Widget is a new-tab-page widget registration: identity plus a render
// capability. Registration and enablement are separate; a widget can be
// registered but dormant.
type Widget struct {
	ID      string
	Title   string
	Favicon string
	Render  WidgetRenderFunc
}

// Valid reports whether the registration carries the required fields.
func (w Widget) Valid() bool {
	return w.ID != "" && w.Title != "" && w.Render != nil
}
