package acceptance

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prperemyshlev/auth-notification-service/internal/dto"
)

type userPage struct {
	Items []dto.UserResponse `json:"items"`
	Meta  dto.PaginationMeta `json:"meta"`
}

func (s *Suite) TestListUsers_SeededAdmin() {
	created, err := s.App.Seed(context.Background())
	s.Require().NoError(err)
	s.Equal(2, created)

	created, err = s.App.Seed(context.Background())
	s.Require().NoError(err)
	s.Zero(created)

	user := s.register("member@example.com")

	resp, _ := s.request(http.MethodGet, "/api/v1/auth/users", nil, user.AccessToken)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp, env := s.request(http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
		Email:    "admin@example.com",
		Password: "Password123",
	}, "")
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	admin := s.authData(env)
	s.Equal("ADMIN", admin.User.Role)

	resp, env = s.request(http.MethodGet, "/api/v1/auth/users?sort_by=email&sort_order=asc", nil, admin.AccessToken)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var page userPage
	s.Require().NoError(json.Unmarshal(env.Data, &page))
	s.Equal(3, page.Meta.TotalItems)
	s.Require().Len(page.Items, 3)
	s.Equal("admin@example.com", *page.Items[0].Email)
	s.Equal("member@example.com", *page.Items[1].Email)
	s.Equal("superadmin@example.com", *page.Items[2].Email)
}
