package core

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Embed colors.
const (
	EmbedColor   = 0xb01e66
	WarningColor = 0xf1c40f
	ErrorColor   = 0xe74c3c
	SuccessColor = 0x2ecc71
)

// Embed builds a plain embed in the given color.
func Embed(color int, title, description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: title, Description: description, Color: color}
}

// Info replies with an informational embed.
func Info(c Context, format string, a ...any) (string, error) {
	return c.Reply(Embed(EmbedColor, "", fmt.Sprintf(format, a...)))
}

// Success replies with a confirmation.
func Success(c Context, format string, a ...any) (string, error) {
	return c.Reply(Embed(SuccessColor, "", fmt.Sprintf(format, a...)))
}

// Warn replies with a non-fatal denial or validation message.
func Warn(c Context, format string, a ...any) (string, error) {
	return c.Reply(Embed(WarningColor, "⚠️ Warning", fmt.Sprintf(format, a...)))
}

// Fail replies with an error.
func Fail(c Context, format string, a ...any) (string, error) {
	return c.Reply(Embed(ErrorColor, "Error", fmt.Sprintf(format, a...)))
}

// GenericFailure is shown when a command fails unexpectedly.
const GenericFailure = "Something went wrong while running that command."
