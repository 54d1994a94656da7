package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	mock_cli "github.com/at-ishikawa/flashq/internal/mocks/cli"
)

func TestInteractiveCLI_Run(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(*mock_cli.MockSession)
		cancelAfter time.Duration
		wantErr     bool
	}{
		{
			name: "Session returns error",
			setupMock: func(mockSession *mock_cli.MockSession) {
				mockSession.EXPECT().
					Session(gomock.Any()).
					Return(errors.New("mock session error")).
					Times(1)
			},
			wantErr: true,
		},
		{
			name: "Session ends the loop",
			setupMock: func(mockSession *mock_cli.MockSession) {
				gomock.InOrder(
					mockSession.EXPECT().Session(gomock.Any()).Return(nil).Times(2),
					mockSession.EXPECT().Session(gomock.Any()).Return(errEnd),
				)
			},
			wantErr: false,
		},
		{
			name: "Context cancelled before first session",
			setupMock: func(mockSession *mock_cli.MockSession) {
				// May or may not be called depending on timing
				mockSession.EXPECT().
					Session(gomock.Any()).
					Return(nil).
					AnyTimes()
			},
			cancelAfter: 1 * time.Millisecond,
			wantErr:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockSession := mock_cli.NewMockSession(ctrl)
			tt.setupMock(mockSession)

			cli := newInteractiveCLI(strings.NewReader(""), &bytes.Buffer{})

			ctx := context.Background()
			if tt.cancelAfter > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, tt.cancelAfter)
				defer cancel()
			}

			err := cli.Run(ctx, mockSession)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	t.Run("ContextPropagation", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		receivedContext := make(chan context.Context, 1)

		mockSession := mock_cli.NewMockSession(ctrl)
		mockSession.EXPECT().
			Session(gomock.Any()).
			DoAndReturn(func(ctx context.Context) error {
				select {
				case receivedContext <- ctx:
				default:
				}
				return errors.New("test error")
			}).
			Times(1)

		cli := newInteractiveCLI(strings.NewReader(""), &bytes.Buffer{})

		_ = cli.Run(context.Background(), mockSession)

		// Verify that context was passed to session
		select {
		case ctx := <-receivedContext:
			assert.NotNil(t, ctx)
		case <-time.After(1 * time.Second):
			t.Fatal("Context was not passed to session")
		}
	})
}

func TestInteractiveCLI_readLine(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "unix newline", input: "good\n", want: "good"},
		{name: "windows newline", input: "3\r\n", want: "3"},
		{name: "stray carriage returns", input: "q\r\r\n", want: "q"},
		{name: "keeps surrounding spaces", input: " 2 \n", want: " 2 "},
		{name: "last line without newline", input: "easy", want: "easy"},
		{name: "end of input", input: "", wantErr: errEnd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := newInteractiveCLI(strings.NewReader(tt.input), &bytes.Buffer{})
			got, err := cli.readLine()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
