package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Раскрытие макросов: форма вызова
	MacroInfo                 Code = 4000
	MacroTooManyArgumentLists Code = 4001
	MacroTooFewArgumentLists  Code = 4002
	MacroTooManyArguments     Code = 4003
	MacroTooFewArguments      Code = 4004

	// Привязка к реализации
	MacroBadBinding         Code = 4010
	MacroImplNotFound       Code = 4011
	MacroCancelledErroneous Code = 4012

	// Ошибки при вызове реализации
	MacroGeneratedTypeError Code = 4020
	MacroGeneratedAbort     Code = 4021
	MacroGeneratedException Code = 4022

	// Проверка результата
	MacroInvalidExpansionType  Code = 4030
	MacroInvalidExpansionShape Code = 4031
	MacroFreeSymbol            Code = 4032
	MacroFreeType              Code = 4033

	// Сообщения самих реализаций (c.Error / c.Warning / c.Info)
	MacroUserMessage Code = 4040

	// Наблюдаемость
	ObsTimings Code = 9000
)

var codeDescription = map[Code]string{
	UnknownCode:                "Unknown error",
	MacroInfo:                  "Macro expansion information",
	MacroTooManyArgumentLists:  "Macro application has too many argument lists",
	MacroTooFewArgumentLists:   "Macro application has too few argument lists",
	MacroTooManyArguments:      "Macro application has too many arguments",
	MacroTooFewArguments:       "Macro application has not enough arguments",
	MacroBadBinding:            "Malformed macro implementation binding",
	MacroImplNotFound:          "Macro implementation not found",
	MacroCancelledErroneous:    "Macro expansion cancelled because of previous errors",
	MacroGeneratedTypeError:    "Macro implementation generated a type error",
	MacroGeneratedAbort:        "Macro implementation aborted",
	MacroGeneratedException:    "Macro implementation failed with an exception",
	MacroInvalidExpansionType:  "Macro expansion has an invalid type",
	MacroInvalidExpansionShape: "Macro expansion has an invalid shape",
	MacroFreeSymbol:            "Macro expansion contains a free term variable",
	MacroFreeType:              "Macro expansion contains a free type variable",
	MacroUserMessage:           "Message reported by a macro implementation",
	ObsTimings:                 "Pipeline timings",
}

func (c Code) ID() string {
	switch {
	case c >= 4000 && c < 5000:
		return fmt.Sprintf("MAC%04d", uint16(c))
	case c >= 9000:
		return fmt.Sprintf("OBS%04d", uint16(c))
	}
	return "E0000"
}

func (c Code) Title() string {
	if d, ok := codeDescription[c]; ok {
		return d
	}
	return codeDescription[UnknownCode]
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
