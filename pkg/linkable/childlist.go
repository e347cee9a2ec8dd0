package linkable

import (
	"github.com/aretw0/loom/pkg/callback"
	"github.com/aretw0/loom/pkg/session"
)

// ChildListCallbacks reports structural changes of a HashMap. While a
// callback runs, the Last* accessors describe the change that caused it;
// values are restored after the run so nested changes do not leak.
type ChildListCallbacks struct {
	*callback.Collection

	nameAdded     string
	objectAdded   session.Linkable
	nameRemoved   string
	objectRemoved session.Linkable
}

func newChildListCallbacks(m *session.Manager) *ChildListCallbacks {
	c := &ChildListCallbacks{}
	c.Collection = m.NewCallbackCollection(callback.WithPreCallback(c.stage))
	return c
}

// LastNameAdded is the name of the object just added, or "".
func (c *ChildListCallbacks) LastNameAdded() string { return c.nameAdded }

// LastObjectAdded is the object just added, or nil.
func (c *ChildListCallbacks) LastObjectAdded() session.Linkable { return c.objectAdded }

// LastNameRemoved is the name of the object just removed, or "".
func (c *ChildListCallbacks) LastNameRemoved() string { return c.nameRemoved }

// LastObjectRemoved is the object just removed, or nil.
func (c *ChildListCallbacks) LastObjectRemoved() session.Linkable { return c.objectRemoved }

// stage is the pre-callback; args are (name, added, removed).
func (c *ChildListCallbacks) stage(args ...any) {
	var (
		name           string
		added, removed session.Linkable
	)
	if len(args) > 0 {
		name, _ = args[0].(string)
	}
	if len(args) > 1 {
		added, _ = args[1].(session.Linkable)
	}
	if len(args) > 2 {
		removed, _ = args[2].(session.Linkable)
	}
	c.set(name, added, removed)
}

func (c *ChildListCallbacks) set(name string, added, removed session.Linkable) {
	c.nameAdded, c.objectAdded = "", added
	c.nameRemoved, c.objectRemoved = "", removed
	if added != nil {
		c.nameAdded = name
	}
	if removed != nil {
		c.nameRemoved = name
	}
}

// run runs the callbacks for one change and restores the previous values.
func (c *ChildListCallbacks) run(name string, added, removed session.Linkable) {
	prevName := c.nameAdded
	if c.objectRemoved != nil {
		prevName = c.nameRemoved
	}
	prevAdded, prevRemoved := c.objectAdded, c.objectRemoved

	c.RunCallbacksImmediately(name, added, removed)

	c.set(prevName, prevAdded, prevRemoved)
}
