package engine

import (
	"net/http"

	"github.com/Abraxas-365/craftable/errx"
)

var ErrRegistry = errx.NewRegistry("ENGINE")

var (
	// Flow errors
	CodeFlowNotFound       = ErrRegistry.Register("FLOW_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Flow not found")
	CodeNoDefaultFlow      = ErrRegistry.Register("NO_DEFAULT_FLOW", errx.TypeBusiness, http.StatusNotFound, "AI agent has no default flow")
	CodeInvalidFlowConfig  = ErrRegistry.Register("INVALID_FLOW_CONFIG", errx.TypeValidation, http.StatusBadRequest, "Invalid flow configuration")
	CodeNodeNotFound       = ErrRegistry.Register("NODE_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Node not found")
	CodeInvalidNodeData    = ErrRegistry.Register("INVALID_NODE_DATA", errx.TypeValidation, http.StatusBadRequest, "Invalid node data")
	CodeNoExecutorForNode  = ErrRegistry.Register("NO_EXECUTOR_FOR_NODE", errx.TypeInternal, http.StatusInternalServerError, "No executor registered for node type")
	CodeStepLimitExceeded  = ErrRegistry.Register("STEP_LIMIT_EXCEEDED", errx.TypeInternal, http.StatusInternalServerError, "Node execution limit per turn exceeded")
	CodeNodeExecutionPanic = ErrRegistry.Register("NODE_EXECUTION_PANIC", errx.TypeInternal, http.StatusInternalServerError, "Node execution panicked")

	// Session / conversation errors
	CodeSessionNotFound      = ErrRegistry.Register("SESSION_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Session not found")
	CodeConversationNotFound = ErrRegistry.Register("CONVERSATION_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Conversation not found")
	CodeItemNotFound         = ErrRegistry.Register("ITEM_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Conversation item not found")
	CodeUserNotFound         = ErrRegistry.Register("USER_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeLockNotAcquired      = ErrRegistry.Register("LOCK_NOT_ACQUIRED", errx.TypeConflict, http.StatusConflict, "Conversation is locked by another turn")

	// Collaborator errors
	CodeToolInvocationFailed = ErrRegistry.Register("TOOL_INVOCATION_FAILED", errx.TypeExternal, http.StatusBadGateway, "Tool invocation failed")
	CodeAssignmentFailed     = ErrRegistry.Register("ASSIGNMENT_FAILED", errx.TypeExternal, http.StatusBadGateway, "Agent assignment failed")
)

// Error constructor functions
func ErrFlowNotFound() *errx.Error {
	return ErrRegistry.New(CodeFlowNotFound)
}

func ErrNoDefaultFlow() *errx.Error {
	return ErrRegistry.New(CodeNoDefaultFlow)
}

func ErrInvalidFlowConfig() *errx.Error {
	return ErrRegistry.New(CodeInvalidFlowConfig)
}

func ErrNodeNotFound() *errx.Error {
	return ErrRegistry.New(CodeNodeNotFound)
}

func ErrInvalidNodeData() *errx.Error {
	return ErrRegistry.New(CodeInvalidNodeData)
}

func ErrNoExecutorForNode() *errx.Error {
	return ErrRegistry.New(CodeNoExecutorForNode)
}

func ErrStepLimitExceeded() *errx.Error {
	return ErrRegistry.New(CodeStepLimitExceeded)
}

func ErrNodeExecutionPanic() *errx.Error {
	return ErrRegistry.New(CodeNodeExecutionPanic)
}

func ErrSessionNotFound() *errx.Error {
	return ErrRegistry.New(CodeSessionNotFound)
}

func ErrConversationNotFound() *errx.Error {
	return ErrRegistry.New(CodeConversationNotFound)
}

func ErrItemNotFound() *errx.Error {
	return ErrRegistry.New(CodeItemNotFound)
}

func ErrUserNotFound() *errx.Error {
	return ErrRegistry.New(CodeUserNotFound)
}

func ErrLockNotAcquired() *errx.Error {
	return ErrRegistry.New(CodeLockNotAcquired)
}

func ErrToolInvocationFailed() *errx.Error {
	return ErrRegistry.New(CodeToolInvocationFailed)
}

func ErrAssignmentFailed() *errx.Error {
	return ErrRegistry.New(CodeAssignmentFailed)
}
