package main

import (
	"context"
	"flag"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/esthetix/clinic-portal/internal/awsconfig"
	appconfig "github.com/esthetix/clinic-portal/internal/config"
	"github.com/esthetix/clinic-portal/internal/slots"
	"github.com/esthetix/clinic-portal/internal/treatments"
	"github.com/esthetix/clinic-portal/internal/users"
	"github.com/esthetix/clinic-portal/pkg/logging"
)

// Seeds the schedule table for a fresh environment: the default weekly slot
// grid, the treatment catalog, and optionally an admin user.
func main() {
	adminUID := flag.String("admin", "", "user id to grant admin access")
	skipGrid := flag.Bool("skip-grid", false, "do not write the default slot grid")
	skipTreatments := flag.Bool("skip-treatments", false, "do not write the treatment catalog")
	flag.Parse()

	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	awsCfg, err := awsconfig.Load(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	client := dynamodb.NewFromConfig(awsCfg)

	if !*skipGrid {
		store := slots.NewStore(client, cfg.ScheduleTable, logger)
		if err := store.PutGrid(ctx, slots.GenerateGrid()); err != nil {
			logger.Error("failed to seed slot grid", "error", err)
			os.Exit(1)
		}
		logger.Info("seeded default slot grid", "table", cfg.ScheduleTable)
	}

	if !*skipTreatments {
		store := treatments.NewStore(client, cfg.ScheduleTable, logger)
		for _, t := range catalogSeed {
			if err := store.Put(ctx, t); err != nil {
				logger.Error("failed to seed treatment", "pageName", t.PageName, "error", err)
				os.Exit(1)
			}
		}
		logger.Info("seeded treatment catalog", "count", len(catalogSeed))
	}

	if *adminUID != "" {
		store := users.NewStore(client, cfg.ScheduleTable, logger)
		if err := store.GrantAdmin(ctx, *adminUID); err != nil {
			logger.Error("failed to grant admin", "uid", *adminUID, "error", err)
			os.Exit(1)
		}
		logger.Info("granted admin access", "uid", *adminUID)
	}
}

var catalogSeed = []treatments.Treatment{
	{
		PageName:    "hydrafacial",
		Name:        "HydraFacial",
		Tagline:     "Deep cleanse, exfoliate, and hydrate in one session",
		Description: "A three-step vortex treatment that removes impurities and infuses the skin with hydrating serums. Suitable for all skin types with no downtime.",
		Benefits:    []string{"Instant glow", "No downtime", "Gentle on sensitive skin"},
		SideEffects: []string{"Mild redness for a few hours"},
		Keywords:    []string{"facial", "hydration", "glow", "cleanse"},
		FAQs: []treatments.FAQ{
			{Question: "How often should I get a HydraFacial?", Answer: "Most patients see the best results with a monthly session."},
			{Question: "Is there any downtime?", Answer: "None. You can return to your normal routine immediately."},
		},
	},
	{
		PageName:    "botox",
		Name:        "Botox",
		Tagline:     "Smooth dynamic wrinkles with precise neuromodulator injections",
		Description: "Targeted injections that relax the muscles behind frown lines, crow's feet, and forehead creases. Results appear within a week and last three to four months.",
		Benefits:    []string{"Softens expression lines", "Quick 15-minute visits", "Preventative benefits"},
		SideEffects: []string{"Pinpoint bruising", "Temporary heaviness near the injection site"},
		Keywords:    []string{"wrinkles", "injections", "forehead", "frown lines"},
		FAQs: []treatments.FAQ{
			{Question: "How long does Botox last?", Answer: "Typically 3-4 months, with full effect at about two weeks."},
			{Question: "Does it hurt?", Answer: "Most patients describe a brief pinch. Numbing cream is available."},
		},
	},
	{
		PageName:    "chemical-peel",
		Name:        "Chemical Peel",
		Tagline:     "Resurface tone and texture with medical-grade exfoliation",
		Description: "A customized acid blend lifts away dull surface layers to improve tone, fine lines, and acne scarring. Depth is tailored to your skin and goals.",
		Benefits:    []string{"Evens skin tone", "Softens fine lines", "Improves acne scarring"},
		SideEffects: []string{"Visible peeling for several days", "Sun sensitivity"},
		Keywords:    []string{"peel", "exfoliation", "texture", "acne scars"},
		FAQs: []treatments.FAQ{
			{Question: "How much will my skin peel?", Answer: "Light peels flake subtly; deeper peels shed visibly for up to a week."},
		},
	},
	{
		PageName:    "laser-hair-removal",
		Name:        "Laser Hair Removal",
		Tagline:     "Long-term hair reduction for face and body",
		Description: "Diode laser pulses target the follicle to reduce growth over a series of sessions. Works best on coarse, dark hair.",
		Benefits:    []string{"Lasting reduction after a full course", "Fast sessions for small areas"},
		SideEffects: []string{"Temporary redness", "Mild swelling around follicles"},
		Keywords:    []string{"laser", "hair", "removal", "smooth"},
		FAQs: []treatments.FAQ{
			{Question: "How many sessions do I need?", Answer: "Usually six to eight sessions spaced four to six weeks apart."},
		},
	},
	{
		PageName:    "dermal-fillers",
		Name:        "Dermal Fillers",
		Tagline:     "Restore volume and contour with hyaluronic acid fillers",
		Description: "Injectable hyaluronic acid gels that restore lost volume in the cheeks, lips, and jawline. Results are immediate and reversible.",
		Benefits:    []string{"Immediate results", "Reversible", "Natural-looking volume"},
		SideEffects: []string{"Swelling for 24-48 hours", "Possible bruising"},
		Keywords:    []string{"filler", "lips", "cheeks", "volume"},
		FAQs: []treatments.FAQ{
			{Question: "How long do fillers last?", Answer: "Between six and eighteen months depending on the product and area."},
		},
	},
}
