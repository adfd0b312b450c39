package textnorm

import "regexp"

var (
	helpPattern = regexp.MustCompile(`^(алиса |яндекс )?(помощь|что ты (умеешь|можешь)|help)$`)
	exitPattern = regexp.MustCompile(`^(алиса |яндекс )?(выход|хватит( болтать| играть)?|выйти|закончить|exit|quit|stop)$`)
	yesPattern  = regexp.MustCompile(`^(да|ага|окей|ок|конечно|yes|yep|хорошо|ладно)$`)
	noPattern   = regexp.MustCompile(`^(нет|не|no|nope)$`)
)

// LikeHelp reports whether text is a request for help.
func LikeHelp(text string) bool { return helpPattern.MatchString(Normalize(text)) }

// LikeExit reports whether text asks to end the conversation.
func LikeExit(text string) bool { return exitPattern.MatchString(Normalize(text)) }

// LikeYes reports whether text is an affirmative answer.
func LikeYes(text string) bool { return yesPattern.MatchString(Normalize(text)) }

// LikeNo reports whether text is a negative answer.
func LikeNo(text string) bool { return noPattern.MatchString(Normalize(text)) }
