package advisory

import "context"

type AdvisorStub struct {
	Advice string
	Calls  []string
}

func (stub *AdvisorStub) Advise(ctx context.Context, locationText string) string {
	stub.Calls = append(stub.Calls, locationText)

	if stub.Advice == "" {
		return FallbackAdvice
	}

	return stub.Advice
}
