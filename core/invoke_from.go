package core

// InvokeFrom identifies the channel an invocation originated from. It
// determines the composite owner string recorded for a task, which gates
// external stop requests.
type InvokeFrom string

const (
	// InvokeFromWebApp is the published end-user web application.
	InvokeFromWebApp InvokeFrom = "web_app"
	// InvokeFromDebugger is the console preview/debug panel.
	InvokeFromDebugger InvokeFrom = "debugger"
	// InvokeFromServiceAPI is the public service API.
	InvokeFromServiceAPI InvokeFrom = "service_api"
	// InvokeFromAssistantAgent is the built-in assistant agent.
	InvokeFromAssistantAgent InvokeFrom = "assistant_agent"
)

// OwnerKind maps the channel to the account type owning the task. Console
// channels run as platform accounts, everything else as end users.
func (f InvokeFrom) OwnerKind() string {
	switch f {
	case InvokeFromDebugger, InvokeFromAssistantAgent:
		return "account"
	default:
		return "end-user"
	}
}

// Owner builds the composite owner string recorded in the shared cache when
// a task channel is created, e.g. "account-7d3f..." or "end-user-42".
func (f InvokeFrom) Owner(userID string) string {
	return f.OwnerKind() + "-" + userID
}
