// Package intent implements deterministic intent matching for inbound
// messages. Rules are tried in declared order and the first matching
// pattern wins; only when no rule matches does the orchestrator fall back
// to the generative model.
package intent

import (
	"regexp"
	"strings"
)

// Intent names.
const (
	Greeting = "greeting"
	Pricing  = "pricing"
	Demo     = "demo"
	Support  = "support"
	Contact  = "contact"
	Status   = "status"
	Bye      = "bye"
	OptOut   = "opt_out"
)

type rule struct {
	intent   string
	patterns []*regexp.Regexp
}

// Whole-message intents (greetings, opt-out) are anchored; keyword intents
// match anywhere in the message.
var rules = []rule{
	{Greeting, compile(`^(?i)(hi|hello|hey|hola|namaste|good morning|good evening|yo)\b`)},
	{Pricing, compile(`(?i)\b(price|cost|rate|fee|charges?|how much|quote|plan)\b`)},
	{Demo, compile(`(?i)\b(demo|trial|test|try|sample|show me)\b`)},
	{Support, compile(`(?i)\b(help|support|issue|problem|bug|error|broken|not working)\b`)},
	{Contact, compile(`(?i)\b(call me|contact|reach|talk to (someone|human|agent)|connect me)\b`)},
	{Status, compile(`(?i)\b(status|track|order|where is|my (order|delivery))\b`)},
	{Bye, compile(`(?i)^(bye|goodbye|see you|thanks|thank you|ok|done)\s*\.?$`)},
	{OptOut, compile(`(?i)^(stop|unsubscribe|cancel|quit|opt.?out)\s*$`)},
}

var responses = map[string]string{
	Greeting: "Hi there! 👋 Welcome! I'm here to help you. What can I assist you with today?\n\n1️⃣ Pricing\n2️⃣ Demo/Trial\n3️⃣ Support\n4️⃣ Talk to agent",
	Pricing:  "Here are our plans:\n\n💎 *Starter* - ₹999/mo\n🚀 *Pro* - ₹2499/mo\n🏢 *Enterprise* - Custom\n\nWould you like a demo? Reply *demo*",
	Demo:     "Great! I'll set you up with a free demo 🎯\n\nPlease share your email address and we'll get started!",
	Support:  "I'll help you right away! 🛠️\n\nPlease describe your issue in detail, or reply *agent* to connect with our support team.",
	Contact:  "Connecting you to a human agent... 🙋\n\nOur team will reach out within a few minutes. What's the best time to call you?",
	Status:   "Please share your order ID or registered phone number and I'll check the status for you! 📦",
	Bye:      "Goodbye! 👋 Thanks for reaching out. Feel free to message anytime!",
	OptOut:   "You've been unsubscribed from our messages. Reply *START* anytime to opt back in.",
}

func compile(exprs ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		compiled = append(compiled, regexp.MustCompile(expr))
	}
	return compiled
}

// Detect returns the first intent whose pattern matches the text, or ""
// when no rule matches.
func Detect(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(trimmed) {
				return r.intent
			}
		}
	}
	return ""
}

// Response returns the canned reply for an intent, or "" when the intent
// has no canned reply.
func Response(name string) string {
	return responses[name]
}
