// Package bot posts wagering announcements to a Discord channel.
package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"runepoints/events"
)

// ChannelSender is the slice of the Discord session the announcer uses
type ChannelSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Announcer turns bet event lifecycle events into channel messages
type Announcer struct {
	sender    ChannelSender
	channelID string
}

// NewAnnouncer creates an announcer posting to channelID
func NewAnnouncer(sender ChannelSender, channelID string) *Announcer {
	return &Announcer{sender: sender, channelID: channelID}
}

// Subscribe registers the announcer's handlers on the bus
func (a *Announcer) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeBetEventCreated, a.handle)
	bus.Subscribe(events.EventTypeBetEventClosed, a.handle)
	bus.Subscribe(events.EventTypeBetEventResolved, a.handle)
}

func (a *Announcer) handle(ctx context.Context, event events.Event) {
	var embed *discordgo.MessageEmbed
	switch e := event.(type) {
	case events.BetEventCreatedEvent:
		embed = buildEventCreatedEmbed(e)
	case events.BetEventClosedEvent:
		embed = buildEventClosedEmbed(e)
	case events.BetEventResolvedEvent:
		embed = buildEventResolvedEmbed(e)
	default:
		return
	}

	if _, err := a.sender.ChannelMessageSendEmbed(a.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"channelID": a.channelID,
			"error":     err,
		}).Error("Failed to post announcement")
	}
}

// OpenSession connects a bot session with the given token
func OpenSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}
	log.Info("Discord session opened")
	return session, nil
}
