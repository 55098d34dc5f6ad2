package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"runepoints/events"
)

type sentEmbed struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentEmbed
	err  error
}

func (f *fakeSender) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmbed{channelID: channelID, embed: embed})
	return &discordgo.Message{}, f.err
}

func (f *fakeSender) all() []sentEmbed {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentEmbed, len(f.sent))
	copy(out, f.sent)
	return out
}

func TestAnnouncer_EventCreated(t *testing.T) {
	sender := &fakeSender{}
	a := NewAnnouncer(sender, "chan-1")

	a.handle(context.Background(), events.BetEventCreatedEvent{
		EventID:   "event-1",
		Question:  "Who wins the final?",
		Choices:   []string{"Red", "Blue"},
		Deadline:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CreatedBy: "op-1",
	})

	sent := sender.all()
	require.Len(t, sent, 1)
	assert.Equal(t, "chan-1", sent[0].channelID)
	assert.Contains(t, sent[0].embed.Description, "<@op-1> started betting on **Who wins the final?**")
	assert.Contains(t, sent[0].embed.Fields[0].Value, "**2.** Blue")
	assert.Equal(t, "<t:1748779200:R>", sent[0].embed.Fields[1].Value)
}

func TestAnnouncer_EventResolved(t *testing.T) {
	sender := &fakeSender{}
	a := NewAnnouncer(sender, "chan-1")

	a.handle(context.Background(), events.BetEventResolvedEvent{
		EventID:       "event-1",
		Question:      "Who wins the final?",
		WinningChoice: 0,
		WinningLabel:  "Red",
		Totals:        []int64{100, 300},
		Pool:          400,
		Payouts:       map[string]int64{"alice": 400},
	})

	sent := sender.all()
	require.Len(t, sent, 1)
	embed := sent[0].embed
	assert.Equal(t, "Result: Red", embed.Title)
	assert.Equal(t, "x4.00", embed.Fields[1].Value)
	assert.Contains(t, embed.Fields[2].Value, "<@alice> +400")
}

func TestAnnouncer_EventResolvedWithoutWinners(t *testing.T) {
	embed := buildEventResolvedEmbed(events.BetEventResolvedEvent{
		EventID:       "event-1",
		WinningChoice: 2,
		WinningLabel:  "Green",
		Totals:        []int64{10, 20, 0},
		Pool:          30,
		Payouts:       map[string]int64{},
	})

	assert.Equal(t, "x0.00", embed.Fields[1].Value)
	assert.Equal(t, "Nobody picked this one.", embed.Fields[2].Value)
}

func TestAnnouncer_IgnoresOtherEventsAndSurvivesErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("rate limited")}
	a := NewAnnouncer(sender, "chan-1")

	a.handle(context.Background(), events.BetPlacedEvent{EventID: "event-1"})
	assert.Empty(t, sender.all())

	a.handle(context.Background(), events.BetEventClosedEvent{EventID: "event-1", Totals: []int64{5, 5}})
	assert.Len(t, sender.all(), 1)
}

func TestAnnouncer_SubscribedToBus(t *testing.T) {
	sender := &fakeSender{}
	bus := events.NewBus()
	NewAnnouncer(sender, "chan-1").Subscribe(bus)

	bus.Emit(context.Background(), events.BetEventClosedEvent{EventID: "event-1", Question: "Q?", Totals: []int64{1, 2}})
	bus.Emit(context.Background(), events.BalanceChangeEvent{UserID: "alice"})

	assert.Eventually(t, func() bool { return len(sender.all()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestFormatPoints(t *testing.T) {
	assert.Equal(t, "0", FormatPoints(0))
	assert.Equal(t, "999", FormatPoints(999))
	assert.Equal(t, "1,000", FormatPoints(1000))
	assert.Equal(t, "1,234,567", FormatPoints(1234567))
	assert.Equal(t, "-12,345", FormatPoints(-12345))
}
