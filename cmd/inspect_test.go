package cmd

import (
	"net/url"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/overmindtech/doinspect/inspect"
)

func TestQueryFromFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want url.Values
	}{
		{
			name: "no flags reads the local appliance",
			args: nil,
			want: url.Values{},
		},
		{
			name: "explicit port zero is passed on",
			args: []string{"--target-host", "bigip.example.com", "--target-port", "0"},
			want: url.Values{
				inspect.ParamTargetHost: {"bigip.example.com"},
				inspect.ParamTargetPort: {"0"},
			},
		},
		{
			name: "all target flags",
			args: []string{"--target-host", "bigip", "--target-port", "8443", "--target-username", "admin", "--target-password", "secret"},
			want: url.Values{
				inspect.ParamTargetHost:     {"bigip"},
				inspect.ParamTargetPort:     {"8443"},
				inspect.ParamTargetUsername: {"admin"},
				inspect.ParamTargetPassword: {"secret"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			flags := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			addTargetFlags(flags)
			require.NoError(t, flags.Parse(tt.args))

			v := viper.New()
			require.NoError(t, v.BindPFlags(flags))

			assert.Equal(t, tt.want, queryFrom(v))
		})
	}
}
