package ado

import (
	"context"
	"net/url"
)

func teamPath(project, team string, parts ...string) string {
	p := "/" + url.PathEscape(project) + "/" + url.PathEscape(team) + "/_apis"
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// ListTeams returns the teams of a project.
func (c *Client) ListTeams(ctx context.Context, project string) ([]Team, error) {
	return listSkip[Team](ctx, c, "/_apis/projects/"+url.PathEscape(project)+"/teams", nil)
}

// ListTeamMembers returns the members of one team.
func (c *Client) ListTeamMembers(ctx context.Context, project, teamID string) ([]TeamMember, error) {
	return listSkip[TeamMember](ctx, c,
		"/_apis/projects/"+url.PathEscape(project)+"/teams/"+url.PathEscape(teamID)+"/members", nil)
}

// ListBoards returns the boards of one team.
func (c *Client) ListBoards(ctx context.Context, project, teamID string) ([]Board, error) {
	return listAll[Board](ctx, c, teamPath(project, teamID, "work", "boards"), nil)
}

// ListBoardColumns returns the columns of one board.
func (c *Client) ListBoardColumns(ctx context.Context, project, teamID, boardID string) ([]BoardColumn, error) {
	return listAll[BoardColumn](ctx, c, teamPath(project, teamID, "work", "boards", url.PathEscape(boardID), "columns"), nil)
}
