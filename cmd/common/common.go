package common

import "github.com/GiGurra/boa/pkg/boa"

func DefaultParamEnricher() boa.ParamEnricher {
	return boa.ParamEnricherCombine(
		boa.ParamEnricherBool,
		boa.ParamEnricherName,
		boa.ParamEnricherShort,
	)
}

// Exit codes shared by the wsterm commands.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitConnection = 2
)
