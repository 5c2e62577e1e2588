// Package schedule evaluates actions on the entries of a work schedule: a
// tree of planned items, each optionally bound to a concrete business
// instance, owned by a top-level container such as a project.
//
// The role on an entry is the authority's role on its container. The
// actions of that role are then narrowed by the entry's position in the tree
// and by its lifecycle state.
package schedule

// TargetType is the target type of schedule entries.
const TargetType = "scheduleEntry"

// Entry actions.
const (
	ActionOpen           = "OPEN"
	ActionApprove        = "APPROVE"
	ActionDelete         = "DELETE"
	ActionStop           = "STOP"
	ActionEditDetails    = "EDIT_DETAILS"
	ActionAddChild       = "ADD_CHILD"
	ActionAddPredecessor = "ADD_PREDECESSOR"
	ActionAddSuccessor   = "ADD_SUCCESSOR"
	ActionAddTaskAbove   = "ADD_TASK_ABOVE"
	ActionAddTaskBelow   = "ADD_TASK_BELOW"
	ActionIndent         = "INDENT"
	ActionOutdent        = "OUTDENT"
)

// rootRestricted are removed from entries without a parent.
var rootRestricted = []string{
	ActionAddPredecessor,
	ActionAddSuccessor,
	ActionAddTaskAbove,
	ActionAddTaskBelow,
	ActionStop,
	ActionEditDetails,
}

// Default bound type families.
var (
	// DefaultFixedTypes never move: indent and outdent are always removed.
	DefaultFixedTypes = []string{"case", "workflow", "workflowTask"}
	// DefaultUnsplittableTypes are containers whose children cannot be outdented.
	DefaultUnsplittableTypes = []string{"case"}
	// DefaultTaskTypes are task-like entries.
	DefaultTaskTypes = []string{"task", "standaloneTask"}
	// DefaultContainerTypes are container-like entries a task cannot be indented under.
	DefaultContainerTypes = []string{"project", "case"}
)
