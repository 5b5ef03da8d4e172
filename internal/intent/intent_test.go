package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectGreeting(t *testing.T) {
	cases := []string{"hi", "Hello there", "hey, anyone around?", "Good morning", "yo"}
	for _, text := range cases {
		assert.Equal(t, Greeting, Detect(text), "text: %q", text)
	}
}

func TestDetectPricingKeywordAnywhere(t *testing.T) {
	assert.Equal(t, Pricing, Detect("what is the price of the pro plan"))
	assert.Equal(t, Pricing, Detect("can you tell me how much it costs"))
}

func TestDetectFirstMatchWins(t *testing.T) {
	// Matches both greeting and pricing; greeting is declared first.
	assert.Equal(t, Greeting, Detect("hi, what is the price?"))
}

func TestDetectByeRequiresWholeMessage(t *testing.T) {
	assert.Equal(t, Bye, Detect("thanks"))
	assert.Equal(t, Bye, Detect("bye."))
	assert.NotEqual(t, Bye, Detect("thanks for nothing, this is broken"))
}

func TestDetectOptOutAnchored(t *testing.T) {
	assert.Equal(t, OptOut, Detect("STOP"))
	assert.Equal(t, OptOut, Detect("unsubscribe"))
	assert.Empty(t, Detect("please stop sending me the wrong invoices"))
}

func TestDetectNoMatch(t *testing.T) {
	assert.Empty(t, Detect("tell me about enterprise onboarding for my team"))
	assert.Empty(t, Detect(""))
}

func TestDetectTrimsWhitespace(t *testing.T) {
	assert.Equal(t, Greeting, Detect("  hello  "))
}

func TestEveryIntentHasResponse(t *testing.T) {
	for _, r := range rules {
		assert.NotEmpty(t, Response(r.intent), "intent %s has no response", r.intent)
	}
}

func TestResponseUnknownIntent(t *testing.T) {
	assert.Empty(t, Response("no_such_intent"))
}
