package store

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/cognicore/protectag/pkg/protectag/category"
	"github.com/cognicore/protectag/pkg/protectag/config"
)

// ApplySeed upserts every category, shop and prompt setting in seed.
// Categories go first so a shop's general category always resolves.
func ApplySeed(ctx context.Context, st Store, seed *config.Seed) error {
	if seed == nil {
		return nil
	}
	if err := seed.Validate(); err != nil {
		return err
	}

	for _, c := range seed.Categories {
		rec := CategoryRecord{
			Category: category.Category{ID: c.ID, Name: c.Name, Aliases: c.Aliases},
			Insurer:  c.Insurer,
			Active:   c.IsActive(),
		}
		if err := st.UpsertCategory(ctx, rec); err != nil {
			return errors.Wrapf(err, "seed category %d", c.ID)
		}
	}

	for _, s := range seed.Shops {
		shop, err := st.UpsertShop(ctx, Shop{Domain: s.Domain, AccessToken: s.AccessToken, APIKey: s.APIKey})
		if err != nil {
			return errors.Wrapf(err, "seed shop %s", s.Domain)
		}
		if s.PromptIntro == "" && s.GeneralCategoryID == nil {
			continue
		}
		ps := PromptSettings{ShopID: shop.ID, Intro: s.PromptIntro, GeneralCategoryID: s.GeneralCategoryID}
		if err := st.UpsertPromptSettings(ctx, ps); err != nil {
			return errors.Wrapf(err, "seed prompt settings for %s", s.Domain)
		}
	}
	return nil
}
