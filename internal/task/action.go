package task

// Kind names the variant of an Action.
type Kind int

const (
	// KindFetch invokes the external fetch routine.
	KindFetch Kind = iota
	// KindStatement executes a SQL statement against the warehouse.
	KindStatement
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindStatement:
		return "sql"
	default:
		return "unknown"
	}
}

// Action is a closed set of things a task can do. The unexported marker
// method keeps other packages from adding variants.
type Action interface {
	Kind() Kind
	isAction()
}

// InvokeFetch calls the fetch collaborator with the run's ExecContext.
type InvokeFetch struct{}

func (InvokeFetch) Kind() Kind { return KindFetch }
func (InvokeFetch) isAction()  {}

// ExecuteStatement runs SQL against the warehouse. The result is not
// inspected beyond success or failure.
type ExecuteStatement struct {
	SQL string
}

func (ExecuteStatement) Kind() Kind { return KindStatement }
func (ExecuteStatement) isAction()  {}
