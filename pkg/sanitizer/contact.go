package sanitizer

import "tokenq/pkg/model"

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func SanitizeContact(c model.Contact, region string) model.Contact {
	mobile := Pipeline{
		TrimAndNormalize,
		func(s string) string { return NormalizePhone(s, region) },
	}
	return model.Contact{
		Name:   NormalizeName(c.Name),
		Mobile: mobile.Apply(c.Mobile),
		City:   NormalizeCity(c.City),
	}
}

func SanitizeContactUpdate(u *model.ContactUpdate, region string) {
	if u.Name != nil {
		name := NormalizeName(*u.Name)
		u.Name = &name
	}
	if u.Mobile != nil {
		mobile := NormalizePhone(*u.Mobile, region)
		u.Mobile = &mobile
	}
	if u.City != nil {
		city := NormalizeCity(*u.City)
		u.City = &city
	}
}

func SanitizeSiteConfig(c model.SiteConfig) model.SiteConfig {
	c.PopupMessage = NormalizeMessage(c.PopupMessage)
	c.PopupImageURL = NormalizeURL(c.PopupImageURL)
	return c
}
