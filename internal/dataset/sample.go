package dataset

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"trustmed/internal/models"
)

// ErrUnknownArea indicates that no sample posts exist for an area.
var ErrUnknownArea = errors.New("no sample posts for area")

type samplePost struct {
	title string
	body  string
}

type sampleArea struct {
	subreddits []string
	posts      []samplePost
	comments   []string
}

var sampleAreas = map[string]sampleArea{
	"diabetes": {
		subreddits: []string{"diabetes", "diabetes_t2", "type2diabetes"},
		posts: []samplePost{
			{"Recently diagnosed with Type 2 Diabetes - where do I start?", "I was just diagnosed with T2D last week. My A1C is 8.2 and my fasting glucose was 165. My doctor prescribed Metformin 500mg twice daily. What should I focus on first? Diet? Exercise?"},
			{"Metformin side effects - is this normal?", "I've been on Metformin 1000mg twice daily for 3 weeks now. Experiencing stomach upset. Doctor says this is normal. Does it get better?"},
			{"What foods have you found that don't spike your blood sugar?", "I test my blood sugar before and 2 hours after meals. What are your go-to foods that keep blood sugar stable?"},
			{"Exercise and blood sugar - confused about timing", "When I exercise in the morning fasting, my blood sugar goes UP not down. When I exercise after eating, it goes down. Is this normal?"},
			{"Success story - A1C went from 9.1 to 5.8 in 6 months", "Through diet changes (low carb), 30 minute walks daily and Metformin, I've gotten my A1C from 9.1 down to 5.8. Happy to answer questions."},
			{"Nighttime blood sugar drops - waking up with lows", "I keep waking up at 3am feeling shaky and sweating. Blood sugar is in the 60s. I'm on Metformin and Glipizide. Should I call my doctor?"},
		},
		comments: []string{
			"I went through the same thing. Metformin side effects get better after 4-6 weeks. Hang in there!",
			"Talk to your doctor about extended release Metformin. Much easier on the stomach.",
			"Cutting carbs helped more than anything else for me.",
			"Walking after meals has been huge for my blood sugar control. Even 10-15 minutes helps.",
			"Stress can really affect blood sugar too. Don't forget the mental health aspect.",
			"Get a CGM if you can afford it. Continuous glucose monitoring is so helpful for understanding patterns.",
		},
	},
	"heart_disease": {
		subreddits: []string{"hypertension", "HeartDisease"},
		posts: []samplePost{
			{"Just diagnosed with hypertension - blood pressure 160/95", "My doctor just told me I have high blood pressure and prescribed Lisinopril 10mg. What lifestyle changes helped you most?"},
			{"Best time to take blood pressure medication?", "I'm on Amlodipine 5mg once daily. Morning or evening? Does it matter?"},
			{"How much does diet really affect blood pressure?", "I've been on medication for 6 months and BP is still 138/88. Is the DASH diet worth it? What foods should I avoid?"},
			{"Blood pressure medication side effects - swollen ankles", "I've been on Amlodipine for 2 months and my ankles are really swollen. Should I ask to switch medications?"},
			{"White coat hypertension vs real hypertension", "At the doctor my BP is always 150/95+. At home it's 125/80. Should I push back on starting medication?"},
			{"Success reducing BP through weight loss", "Lost 30 pounds over 4 months. BP went from 145/92 to 118/75 and my doctor reduced the dosage."},
		},
		comments: []string{
			"I had the same ankle swelling on Amlodipine. Doctor switched me to Lisinopril and it resolved.",
			"Reducing sodium has helped my BP more than I expected. Check labels!",
			"DASH diet really works. My BP dropped 12 points in 6 weeks just from diet changes.",
			"Get a home BP monitor and track it daily. Helps you see patterns.",
			"Starting slow with walking really helped. BP is much better now.",
			"White coat syndrome is real but you should still monitor at home to be sure.",
		},
	},
}

// SampleAreas lists the areas SampleThreads can generate.
func SampleAreas() []string {
	return []string{"diabetes", "heart_disease"}
}

// SampleThreads builds n demonstration threads for area, shaped like the
// collector output. Thread IDs are sample_<area>_NNNN and creation dates fall
// within the 180 days before now.
func SampleThreads(area string, n int, rng *rand.Rand, now time.Time) ([]models.Thread, error) {
	def, ok := sampleAreas[area]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownArea, area)
	}

	threads := make([]models.Thread, 0, n)

	for i := range n {
		post := def.posts[i%len(def.posts)]
		sub := def.subreddits[rng.IntN(len(def.subreddits))]
		created := now.Add(-time.Duration(rng.IntN(180*24)) * time.Hour)
		id := fmt.Sprintf("sample_%s_%04d", area, i+1)

		numComments := 3 + rng.IntN(43)

		comments := make([]models.Comment, 0, len(def.comments))
		for range min(numComments, len(def.comments)) {
			comments = append(comments, models.Comment{
				Author:     fmt.Sprintf("user_%d", 1000+rng.IntN(9000)),
				Body:       def.comments[rng.IntN(len(def.comments))],
				Score:      1 + rng.IntN(50),
				CreatedUTC: created.Add(time.Duration(1+rng.IntN(48)) * time.Hour).UTC().Format(time.RFC3339),
			})
		}

		threads = append(threads, models.Thread{
			ID:                   id,
			Title:                post.title,
			Author:               fmt.Sprintf("user_%d", 1000+rng.IntN(9000)),
			Subreddit:            sub,
			CreatedUTC:           created.UTC().Format(time.RFC3339),
			Score:                5 + rng.IntN(246),
			NumComments:          numComments,
			URL:                  fmt.Sprintf("https://reddit.com/r/%s/comments/%s/", sub, id),
			Selftext:             post.body,
			UpvoteRatio:          float64(75+rng.IntN(24)) / 100,
			Comments:             comments,
			NumCollectedComments: len(comments),
			CollectedAt:          now.UTC().Format(time.RFC3339),
		})
	}

	return threads, nil
}

// SamplePath follows structure: {dir}/{area}_threads_sample.json.
func SamplePath(dir, area string) string {
	return filepath.Join(dir, area+"_threads_sample.json")
}
