package discord

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/jukebox/pkg/retrylimit"
)

// RESTStatus extracts the HTTP status of a failed discordgo REST call.
// Client errors other than 429 are final; retrying them cannot succeed.
func RESTStatus(err error) (int, bool) {
	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode, true
	}
	return retrylimit.DefaultStatus(err)
}

// permanent wraps 4xx REST errors, except 429, so retrylimit.Do gives up.
func permanent(err error) error {
	code, ok := RESTStatus(err)
	if ok && code >= 400 && code < 500 && code != http.StatusTooManyRequests {
		return retrylimit.Fatal(err)
	}
	return err
}
