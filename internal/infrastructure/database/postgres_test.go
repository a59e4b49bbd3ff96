package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSupabaseConnStr(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		password string
		want     string
		wantErr  bool
	}{
		{
			name:     "プロジェクトURLからホストを組み立てる",
			url:      "https://abcd.supabase.co",
			password: "secret",
			want:     "host=db.abcd.supabase.co port=5432 user=postgres password=secret dbname=postgres sslmode=require",
		},
		{
			name:     "末尾スラッシュ付きでも同じ",
			url:      "https://abcd.supabase.co/",
			password: "secret",
			want:     "host=db.abcd.supabase.co port=5432 user=postgres password=secret dbname=postgres sslmode=require",
		},
		{name: "URL未設定", url: "", password: "secret", wantErr: true},
		{name: "パスワード未設定", url: "https://abcd.supabase.co", password: "", wantErr: true},
		{name: "スキームなし", url: "abcd.supabase.co", password: "secret", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildSupabaseConnStr(tt.url, tt.password)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
