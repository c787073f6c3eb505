package stanza

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Draft preview: drafts never appear in public listings, the feed, or the
// sitemap, but the author can read them through a session gated by the
// author password (or freely with WithDrafts on a trusted machine).

func (a *App) handleDrafts(c echo.Context) error {
	if !a.draftAccess(c) {
		if a.Config.AuthorPassword == "" {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return Render(c, a.Views.Login(false, CsrfToken(c)))
	}
	drafts, err := a.Store.ListDrafts()
	if err != nil {
		return err
	}
	for i := range drafts {
		drafts[i].Link = "/drafts/" + drafts[i].Slug + "/"
	}
	return Render(c, a.Views.Drafts(drafts, CsrfToken(c)))
}

func (a *App) handleDraftPost(c echo.Context) error {
	if !a.draftAccess(c) {
		return c.Redirect(http.StatusSeeOther, "/drafts/")
	}
	post, err := a.Store.GetPostAny(c.Param("slug"))
	if err != nil {
		if err == ErrNotFound {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	return Render(c, a.Views.Post(post, nil))
}

func (a *App) handleDraftLogin(c echo.Context) error {
	if a.Config.AuthorPassword == "" {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	if !a.loginLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AuthorPassword)) == 1 {
		if err := setAuthorSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusSeeOther, "/drafts/")
	}
	return Render(c, a.Views.Login(true, CsrfToken(c)))
}

func handleDraftLogout(c echo.Context) error {
	if err := clearAuthorSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}
