package bot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/shopspring/decimal"

	"runepoints/events"
)

// Discord color constants
const (
	ColorPrimary = 0x5865F2 // Discord blurple
	ColorSuccess = 0x57F287 // Green
	ColorWarning = 0xFEE75C // Yellow
)

// maxListedWinners keeps resolution embeds under Discord's field size limit
const maxListedWinners = 10

func buildEventCreatedEmbed(e events.BetEventCreatedEvent) *discordgo.MessageEmbed {
	var choices strings.Builder
	for i, label := range e.Choices {
		fmt.Fprintf(&choices, "**%d.** %s\n", i+1, label)
	}

	return &discordgo.MessageEmbed{
		Title:       "Betting is open",
		Description: fmt.Sprintf("<@%s> started betting on **%s**", e.CreatedBy, e.Question),
		Color:       ColorPrimary,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Choices", Value: choices.String()},
			{Name: "Closes", Value: FormatDiscordTimestamp(e.Deadline, "R"), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Event " + e.EventID},
	}
}

func buildEventClosedEmbed(e events.BetEventClosedEvent) *discordgo.MessageEmbed {
	var pool int64
	for _, t := range e.Totals {
		pool += t
	}

	return &discordgo.MessageEmbed{
		Title:       "Betting closed",
		Description: fmt.Sprintf("**%s** is no longer taking bets. Waiting for the result.", e.Question),
		Color:       ColorWarning,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Pool", Value: FormatPoints(pool) + " points", Inline: true},
			{Name: "Closed", Value: FormatDiscordTimestamp(e.Deadline, "f"), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Event " + e.EventID},
	}
}

func buildEventResolvedEmbed(e events.BetEventResolvedEvent) *discordgo.MessageEmbed {
	odds := "0.00"
	if e.WinningChoice >= 0 && e.WinningChoice < len(e.Totals) && e.Totals[e.WinningChoice] > 0 {
		odds = decimal.NewFromInt(e.Pool).Div(decimal.NewFromInt(e.Totals[e.WinningChoice])).StringFixed(2)
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Pool", Value: FormatPoints(e.Pool) + " points", Inline: true},
		{Name: "Odds", Value: "x" + odds, Inline: true},
	}

	if len(e.Payouts) == 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Winners", Value: "Nobody picked this one."})
	} else {
		winners := make([]string, 0, len(e.Payouts))
		for userID := range e.Payouts {
			winners = append(winners, userID)
		}
		sort.Slice(winners, func(i, j int) bool {
			if e.Payouts[winners[i]] != e.Payouts[winners[j]] {
				return e.Payouts[winners[i]] > e.Payouts[winners[j]]
			}
			return winners[i] < winners[j]
		})

		var lines strings.Builder
		for i, userID := range winners {
			if i == maxListedWinners {
				fmt.Fprintf(&lines, "…and %d more", len(winners)-maxListedWinners)
				break
			}
			fmt.Fprintf(&lines, "<@%s> +%s\n", userID, FormatPoints(e.Payouts[userID]))
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Winners", Value: lines.String()})
	}

	return &discordgo.MessageEmbed{
		Title:       "Result: " + e.WinningLabel,
		Description: fmt.Sprintf("**%s** has been settled.", e.Question),
		Color:       ColorSuccess,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Event " + e.EventID},
	}
}
