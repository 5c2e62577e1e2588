package actionkit

// Target is a business entity on which permissions are evaluated.
type Target interface {
	TargetID() string
	TargetType() string
}

// Authority is the user or group whose permissions are evaluated.
type Authority struct {
	ID     string   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Groups []string `json:"groups,omitempty"` // ids of the groups containing the authority
	Admin  bool     `json:"admin,omitempty"`
}

// NewAuthority creates an authority with the given id.
func NewAuthority(id string, groups ...string) Authority {
	return Authority{ID: id, Groups: groups}
}

// IsZero reports whether the authority is unset.
func (a Authority) IsZero() bool {
	return a.ID == ""
}

// Instance is a generic business object: a project, case, document or any
// other entity identified by id and type, carrying its lifecycle state.
type Instance struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	State      string         `json:"state,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// NewInstance creates an instance of the given type.
func NewInstance(instanceType, id string) *Instance {
	return &Instance{ID: id, Type: instanceType, Properties: make(map[string]any)}
}

// TargetID implements Target.
func (i *Instance) TargetID() string { return i.ID }

// TargetType implements Target.
func (i *Instance) TargetType() string { return i.Type }

// Property returns a property value.
func (i *Instance) Property(key string) (any, bool) {
	if i.Properties == nil {
		return nil, false
	}
	v, ok := i.Properties[key]
	return v, ok
}

// StringProperty returns a string property, or "" when absent or not a string.
func (i *Instance) StringProperty(key string) string {
	v, _ := i.Property(key)
	s, _ := v.(string)
	return s
}
