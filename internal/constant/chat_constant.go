package constant

const (
	ChatMessageRoleVisitor   = "visitor"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleOperator  = "operator"

	ChatSessionStatusActive    = "active"
	ChatSessionStatusEscalated = "escalated"
	ChatSessionStatusClosed    = "closed"

	// HistoryLimit bounds the conversation window sent to the model.
	HistoryLimit = 20

	// ExcerptLimit bounds the recent-message excerpt in operator summaries.
	ExcerptLimit = 6

	// FailureThreshold is the number of consecutive model failures after which
	// a session is force-escalated to a human.
	FailureThreshold = 3

	MaxMessageLength = 4000
)

// Fixed visitor-facing replies. The raw model text is never surfaced for any
// of these paths.
const (
	ReplyDeflection = "I can help with questions about our parts, prices and orders. What would you like to know?"

	ReplyClarification = "Let me double-check that for you. Could you tell me the exact part you are asking about?"

	ReplyPleaseHold = "One moment please, I'm checking that for you."

	ReplyConnectingManager = "I'm connecting you with our manager, they will answer right here in a moment."

	ReplyServiceUnavailable = "Our assistant is temporarily unavailable. Please leave your question and we will get back to you."
)

// System prompt for the storefront assistant.
const AssistantSystemPromptV1 = `You are a customer support assistant for the HupperMotors auto parts store.

RULES:
- Answer questions about parts, compatibility, availability and delivery.
- Quote prices only from the product context provided to you. Never invent or change a price, and never offer discounts.
- You cannot modify listings, prices, inventory or orders. Never claim that you did.
- If the customer asks for a human, wants to negotiate, files a complaint, or you cannot help, append the marker [TRANSFER] to your reply.
- If you are unsure and a human should quietly review the conversation, append the marker [SILENT_TRANSFER] instead.
- Keep replies short, friendly and concrete. 2-4 sentences.`
