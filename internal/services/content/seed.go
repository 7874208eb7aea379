package content

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"nudger/internal/models"
)

// defaultTones is the built-in tone set, in id order.
var defaultTones = []string{
	models.ToneCaring,
	models.ToneNeutral,
	models.ToneAssertive,
	models.ToneEncouraging,
}

var defaultPrompts = map[string][]string{
	models.ToneCaring: {
		"Hey there! 👋 Just a little nudge to remember your financial goals today. You've got this!",
		"Thinking about your financial journey. Remember why you're saving. What's one small choice you can make today to honor your goals?",
		"Your financial dreams matter. Before that coffee run, pause and consider if it aligns with what you're building. We're here to support you.",
	},
	models.ToneNeutral: {
		"Financial Goal Alert: Your designated reminder time. Review current spending decisions against your financial objectives.",
		"Daily Financial Check-in: Consider if upcoming expenses align with your financial goals. Example: Evaluate need for habitual purchases.",
		"Reminder: This is your specified time for financial goal review. Unplanned spending may impact progress.",
	},
	models.ToneAssertive: {
		"Stop. Before you spend, ask yourself: Is this purchase moving you closer to your financial goals? Make the conscious choice.",
		"Your financial goals are not achieved by accident. Every habitual or social spend that deviates from your plan delays your progress. Choose wisely.",
		"This is your reminder to act on your financial goals. Don't let a momentary desire derail your long-term success. Control your spending now.",
	},
	models.ToneEncouraging: {
		"You're doing great! Keep those financial goals in mind today. Every smart choice brings you closer. Let's make it happen!",
		"Imagine reaching your financial goals! That's what every intentional decision today builds towards. You have the power to make it a reality.",
		"You're in control of your financial future! Today, choose to align your spending with your biggest dreams. You've got the strength to make incredible progress.",
	},
}

// Seed inserts the built-in tones that are missing and, when the prompt table
// is empty, the built-in prompts. Running it again changes nothing.
func Seed(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		toneIDs := make(map[string]uint, len(defaultTones))
		created := 0
		for _, name := range defaultTones {
			tone := models.Tone{ToneName: name}
			res := tx.Where(models.Tone{ToneName: name}).FirstOrCreate(&tone)
			if res.Error != nil {
				return fmt.Errorf("failed to seed tone %s: %w", name, res.Error)
			}
			created += int(res.RowsAffected)
			toneIDs[name] = tone.ToneID
		}

		var existing int64
		if err := tx.Model(&models.TonePrompt{}).Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to count prompts: %w", err)
		}
		if existing > 0 {
			log.Debug().Int("tones_created", created).Int64("prompts", existing).Msg("Prompt catalog already seeded")
			return nil
		}

		var prompts []models.TonePrompt
		for _, name := range defaultTones {
			for _, text := range defaultPrompts[name] {
				prompts = append(prompts, models.TonePrompt{Prompt: text, ToneID: toneIDs[name]})
			}
		}
		if err := tx.Create(&prompts).Error; err != nil {
			return fmt.Errorf("failed to seed prompts: %w", err)
		}

		log.Info().Int("tones_created", created).Int("prompts_created", len(prompts)).Msg("Seeded prompt catalog")
		return nil
	})
}
