package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/amps-media/amps/internal/config"
)

func (a *ApiManagerCtx) ListChannels(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.registry.List())
}

func (a *ApiManagerCtx) GetChannel(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.channelFromURL(w, r)
	if !ok {
		return
	}
	a.writeJSON(w, http.StatusOK, channel)
}

func (a *ApiManagerCtx) AddChannel(w http.ResponseWriter, r *http.Request) {
	var channel config.Channel
	if err := json.NewDecoder(r.Body).Decode(&channel); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if channel.Name == "" || channel.Source == "" {
		a.writeError(w, http.StatusBadRequest, "missing required fields: name, source")
		return
	}

	if channel.Profile == "" && channel.Custom == nil {
		a.writeError(w, http.StatusBadRequest, "provide either a profile or a custom command for a channel")
		return
	}

	if err := a.validateChannel(channel); err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	channel.ID = a.registry.NextID()
	a.registry.Set(channel)

	a.logger.Info().Int("channel", channel.ID).Str("name", channel.Name).Msg("channel added")
	a.writeJSON(w, http.StatusCreated, channel)
}

func (a *ApiManagerCtx) UpdateChannel(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.channelFromURL(w, r)
	if !ok {
		return
	}

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || fields == nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	updated := channel
	if err := applyChannelFields(&updated, fields); err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated.ID = channel.ID

	if err := a.validateChannel(updated); err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// a new source, profile or command invalidates the running processes
	if launchChanged(fields) {
		a.supervisor.Stop(channel.ID, "")
	}

	a.registry.Set(updated)
	a.writeJSON(w, http.StatusOK, updated)
}

func (a *ApiManagerCtx) DeleteChannel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "channelID"))
	if err != nil {
		a.writeError(w, http.StatusNotFound, "channel not found")
		return
	}

	channel, ok := a.registry.Remove(id)
	if !ok {
		a.writeError(w, http.StatusNotFound, "channel not found")
		return
	}

	a.supervisor.Stop(id, "")

	a.logger.Info().Int("channel", id).Msg("channel deleted")
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "channel deleted",
		"channel": channel,
	})
}

func (a *ApiManagerCtx) GetPrograms(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.channelFromURL(w, r)
	if !ok {
		return
	}

	programs := channel.Programs
	if programs == nil {
		programs = []config.Program{}
	}
	a.writeJSON(w, http.StatusOK, programs)
}

func (a *ApiManagerCtx) PutPrograms(w http.ResponseWriter, r *http.Request) {
	channel, ok := a.channelFromURL(w, r)
	if !ok {
		return
	}

	var programs []config.Program
	if err := json.NewDecoder(r.Body).Decode(&programs); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := validatePrograms(programs); err != nil {
		a.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	channel.Programs = programs
	a.registry.Set(channel)
	a.writeJSON(w, http.StatusOK, programs)
}

func (a *ApiManagerCtx) channelFromURL(w http.ResponseWriter, r *http.Request) (config.Channel, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "channelID"))
	if err != nil {
		a.writeError(w, http.StatusNotFound, "channel not found")
		return config.Channel{}, false
	}

	channel, ok := a.registry.Get(id)
	if !ok {
		a.writeError(w, http.StatusNotFound, "channel not found")
		return config.Channel{}, false
	}

	return channel, true
}

func (a *ApiManagerCtx) validateChannel(channel config.Channel) error {
	if channel.Profile != "" && !a.profiles.Has(channel.Profile) {
		return fmt.Errorf("profile %q not found", channel.Profile)
	}

	if err := validateCustom(channel.Custom); err != nil {
		return err
	}

	if err := validateHandler(channel.Handler); err != nil {
		return err
	}

	if err := validateInputArgs(channel.InputArgs); err != nil {
		return err
	}

	return validatePrograms(channel.Programs)
}

func validateCustom(custom *config.CustomCommand) error {
	if custom == nil {
		return nil
	}

	switch custom.Command.(type) {
	case nil:
		return fmt.Errorf("custom command requires a command entry")
	case string, []interface{}, []string:
	default:
		return fmt.Errorf("custom command must be a string or a list of arguments")
	}

	switch custom.Env.(type) {
	case nil, map[string]string, map[string]interface{}, map[interface{}]interface{}:
	default:
		return fmt.Errorf("custom env must be a mapping of environment variables")
	}

	switch custom.Cwd.(type) {
	case nil, string:
	default:
		return fmt.Errorf("custom cwd must be a string")
	}

	return nil
}

func validateHandler(handler *config.Handler) error {
	if handler == nil {
		return nil
	}

	if handler.Type == "" {
		return fmt.Errorf("source handler requires a type")
	}

	return nil
}

func validateInputArgs(args interface{}) error {
	if args == nil {
		return nil
	}

	switch list := args.(type) {
	case []string:
		return nil
	case []interface{}:
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return fmt.Errorf("input_args must be a list of strings")
			}
		}
		return nil
	default:
		return fmt.Errorf("input_args must be a list of strings")
	}
}

func validatePrograms(programs []config.Program) error {
	for i, program := range programs {
		if program.Title == "" {
			return fmt.Errorf("program entry at index %d missing required title", i)
		}
	}
	return nil
}

// applyChannelFields merges a partial JSON update into a channel. A JSON
// null clears the field.
func applyChannelFields(channel *config.Channel, fields map[string]json.RawMessage) error {
	for key, raw := range fields {
		if err := applyChannelField(channel, key, raw); err != nil {
			return fmt.Errorf("invalid value for %q", key)
		}
	}
	return nil
}

func applyChannelField(channel *config.Channel, key string, raw json.RawMessage) error {
	null := string(raw) == "null"

	switch key {
	case "id":
		// never updatable
		return nil
	case "name":
		return unmarshalOrClear(raw, null, &channel.Name)
	case "source":
		return unmarshalOrClear(raw, null, &channel.Source)
	case "profile":
		return unmarshalOrClear(raw, null, &channel.Profile)
	case "custom_command":
		if null {
			channel.Custom = nil
			return nil
		}
		channel.Custom = &config.CustomCommand{}
		return json.Unmarshal(raw, channel.Custom)
	case "source_handler":
		if null {
			channel.Handler = nil
			return nil
		}
		channel.Handler = &config.Handler{}
		return json.Unmarshal(raw, channel.Handler)
	case "input_options":
		if null {
			channel.InputOptions = nil
			return nil
		}
		return json.Unmarshal(raw, &channel.InputOptions)
	case "input_args":
		if null {
			channel.InputArgs = nil
			return nil
		}
		return json.Unmarshal(raw, &channel.InputArgs)
	case "variants":
		if null {
			channel.Variants = nil
			return nil
		}
		return json.Unmarshal(raw, &channel.Variants)
	case "logo":
		return unmarshalOrClear(raw, null, &channel.Logo)
	case "tvg_name":
		return unmarshalOrClear(raw, null, &channel.TVGName)
	case "group":
		return unmarshalOrClear(raw, null, &channel.Group)
	case "channel_number":
		if null {
			channel.ChannelNumber = 0
			return nil
		}
		return json.Unmarshal(raw, &channel.ChannelNumber)
	case "description":
		return unmarshalOrClear(raw, null, &channel.Description)
	case "program_feed":
		return unmarshalOrClear(raw, null, &channel.ProgramFeed)
	case "next_programs":
		if null {
			channel.Programs = nil
			return nil
		}
		return json.Unmarshal(raw, &channel.Programs)
	case "regions_allowed":
		if null {
			channel.RegionsAllowed = nil
			return nil
		}
		return json.Unmarshal(raw, &channel.RegionsAllowed)
	case "regions_blocked":
		if null {
			channel.RegionsBlocked = nil
			return nil
		}
		return json.Unmarshal(raw, &channel.RegionsBlocked)
	default:
		// unknown keys are ignored
		return nil
	}
}

func unmarshalOrClear(raw json.RawMessage, null bool, target *string) error {
	if null {
		*target = ""
		return nil
	}
	return json.Unmarshal(raw, target)
}

func launchChanged(fields map[string]json.RawMessage) bool {
	for _, key := range []string{"source", "profile", "custom_command", "source_handler", "input_options", "input_args", "variants"} {
		if _, ok := fields[key]; ok {
			return true
		}
	}
	return false
}
