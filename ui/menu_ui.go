package ui

import (
	"bytes"
	"image/color"
	"log"

	"github.com/ebitenui/ebitenui"
	"github.com/ebitenui/ebitenui/image"
	"github.com/ebitenui/ebitenui/widget"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/gofont/goregular"
)

// MenuActions are the host callbacks behind the menu buttons.
type MenuActions struct {
	Connect    func(endpoint string)
	Offline    func()
	Disconnect func()
	Quit       func()
}

// MenuUI is the host window: session summary, endpoint entry and the
// menu and session buttons.
type MenuUI struct {
	UI *ebitenui.UI

	actions MenuActions

	endpointInput *widget.TextInput
	stateLabel    *widget.Label
	sessionLabel  *widget.Label
	statusLabel   *widget.Label

	titleFace  text.Face
	normalFace text.Face
	smallFace  text.Face
}

func NewMenuUI(defaultEndpoint string, actions MenuActions) *MenuUI {
	ui := &MenuUI{actions: actions}
	ui.loadFonts()
	ui.buildUI(defaultEndpoint)
	return ui
}

func (ui *MenuUI) loadFonts() {
	fontSource, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		log.Fatalf("failed to load UI font: %v", err)
	}

	ui.titleFace = &text.GoTextFace{Source: fontSource, Size: 18}
	ui.normalFace = &text.GoTextFace{Source: fontSource, Size: 12}
	ui.smallFace = &text.GoTextFace{Source: fontSource, Size: 10}
}

func (ui *MenuUI) buildUI(defaultEndpoint string) {
	rootContainer := widget.NewContainer(
		widget.ContainerOpts.BackgroundImage(image.NewNineSliceColor(color.RGBA{20, 20, 30, 255})),
		widget.ContainerOpts.Layout(widget.NewAnchorLayout()),
	)

	contentContainer := widget.NewContainer(
		widget.ContainerOpts.Layout(widget.NewRowLayout(
			widget.RowLayoutOpts.Direction(widget.DirectionVertical),
			widget.RowLayoutOpts.Padding(widget.NewInsetsSimple(12)),
			widget.RowLayoutOpts.Spacing(8),
		)),
		widget.ContainerOpts.WidgetOpts(
			widget.WidgetOpts.LayoutData(widget.AnchorLayoutData{
				HorizontalPosition: widget.AnchorLayoutPositionCenter,
				VerticalPosition:   widget.AnchorLayoutPositionCenter,
			}),
		),
	)

	contentContainer.AddChild(widget.NewLabel(
		widget.LabelOpts.Text("CO-OP", &ui.titleFace, &widget.LabelColor{
			Idle: color.RGBA{255, 255, 255, 255},
		}),
	))

	ui.stateLabel = ui.newInfoLabel(color.RGBA{200, 200, 200, 255})
	contentContainer.AddChild(ui.stateLabel)
	ui.sessionLabel = ui.newInfoLabel(color.RGBA{200, 200, 200, 255})
	contentContainer.AddChild(ui.sessionLabel)

	contentContainer.AddChild(ui.buildEndpointRow(defaultEndpoint))
	contentContainer.AddChild(ui.buildButtons())

	ui.statusLabel = ui.newInfoLabel(color.RGBA{255, 200, 100, 255})
	contentContainer.AddChild(ui.statusLabel)

	rootContainer.AddChild(contentContainer)

	ui.UI = &ebitenui.UI{Container: rootContainer}
}

func (ui *MenuUI) newInfoLabel(c color.Color) *widget.Label {
	return widget.NewLabel(
		widget.LabelOpts.Text("", &ui.smallFace, &widget.LabelColor{Idle: c}),
	)
}

func (ui *MenuUI) buildEndpointRow(defaultEndpoint string) *widget.Container {
	row := widget.NewContainer(
		widget.ContainerOpts.Layout(widget.NewRowLayout(
			widget.RowLayoutOpts.Direction(widget.DirectionHorizontal),
			widget.RowLayoutOpts.Spacing(6),
		)),
	)

	row.AddChild(widget.NewLabel(
		widget.LabelOpts.Text("Endpoint:", &ui.normalFace, &widget.LabelColor{
			Idle: color.RGBA{200, 200, 200, 255},
		}),
	))

	ui.endpointInput = widget.NewTextInput(
		widget.TextInputOpts.WidgetOpts(widget.WidgetOpts.MinSize(200, 22)),
		widget.TextInputOpts.Image(&widget.TextInputImage{
			Idle:     image.NewNineSliceColor(color.RGBA{50, 50, 70, 255}),
			Disabled: image.NewNineSliceColor(color.RGBA{40, 40, 50, 255}),
		}),
		widget.TextInputOpts.Face(&ui.normalFace),
		widget.TextInputOpts.Color(&widget.TextInputColor{
			Idle:          color.RGBA{255, 255, 255, 255},
			Disabled:      color.RGBA{128, 128, 128, 255},
			Caret:         color.RGBA{255, 255, 255, 255},
			DisabledCaret: color.RGBA{128, 128, 128, 255},
		}),
		widget.TextInputOpts.Placeholder(defaultEndpoint),
		widget.TextInputOpts.Padding(widget.NewInsetsSimple(4)),
	)
	row.AddChild(ui.endpointInput)

	return row
}

func (ui *MenuUI) buildButtons() *widget.Container {
	container := widget.NewContainer(
		widget.ContainerOpts.Layout(widget.NewRowLayout(
			widget.RowLayoutOpts.Direction(widget.DirectionHorizontal),
			widget.RowLayoutOpts.Spacing(10),
		)),
	)

	container.AddChild(ui.newButton("Connect", color.RGBA{40, 100, 40, 255}, func() {
		if ui.actions.Connect != nil {
			ui.actions.Connect(ui.endpointInput.GetText())
		}
	}))
	container.AddChild(ui.newButton("Offline", color.RGBA{60, 60, 100, 255}, ui.actions.Offline))
	container.AddChild(ui.newButton("Disconnect", color.RGBA{100, 80, 40, 255}, ui.actions.Disconnect))
	container.AddChild(ui.newButton("Quit", color.RGBA{100, 40, 40, 255}, ui.actions.Quit))

	return container
}

func (ui *MenuUI) newButton(label string, idle color.RGBA, onClick func()) *widget.Button {
	hover := color.RGBA{idle.R + 20, idle.G + 20, idle.B + 20, 255}
	pressed := color.RGBA{idle.R - 10, idle.G - 10, idle.B - 10, 255}
	return widget.NewButton(
		widget.ButtonOpts.WidgetOpts(widget.WidgetOpts.MinSize(90, 28)),
		widget.ButtonOpts.Image(&widget.ButtonImage{
			Idle:    image.NewNineSliceColor(idle),
			Hover:   image.NewNineSliceColor(hover),
			Pressed: image.NewNineSliceColor(pressed),
		}),
		widget.ButtonOpts.Text(label, &ui.normalFace, &widget.ButtonTextColor{
			Idle:    color.RGBA{255, 255, 255, 255},
			Hover:   color.RGBA{230, 230, 230, 255},
			Pressed: color.RGBA{180, 180, 180, 255},
		}),
		widget.ButtonOpts.ClickedHandler(func(args *widget.ButtonClickedEventArgs) {
			if onClick != nil {
				onClick()
			}
		}),
	)
}

// SetSession updates the state and session lines.
func (ui *MenuUI) SetSession(state, session string) {
	ui.stateLabel.Label = state
	ui.sessionLabel.Label = session
}

func (ui *MenuUI) SetStatus(msg string) {
	if ui.statusLabel != nil {
		ui.statusLabel.Label = msg
	}
}

func (ui *MenuUI) Update() {
	ui.UI.Update()
}
